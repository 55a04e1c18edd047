package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoadBasic(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "motor.cfg", `
# main configuration
[motor]
name: left
speed = 60000  # inline comment
direction: forward

[loop]
tick_rate: 10000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.HasSection("motor") || !cfg.HasSection("loop") {
		t.Fatalf("sections = %v", cfg.SectionNames())
	}

	motor, err := cfg.Section("motor")
	if err != nil {
		t.Fatalf("Section: %v", err)
	}
	if name, _ := motor.Get("name"); name != "left" {
		t.Errorf("name = %q, want left", name)
	}
	if speed, _ := motor.GetInt("speed"); speed != 60000 {
		t.Errorf("speed = %d, want 60000", speed)
	}
}

func TestLoadInclude(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "extra.cfg", "[telemetry]\nenable: true\n")
	main := writeConfig(t, dir, "main.cfg", "[motor]\nname: m\n[include extra.cfg]\n")

	cfg, err := Load(main)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.HasSection("telemetry") {
		t.Error("included section missing")
	}
}

func TestLoadIncludeMissingFile(t *testing.T) {
	dir := t.TempDir()
	main := writeConfig(t, dir, "main.cfg", "[include nosuch.cfg]\n")
	if _, err := Load(main); err == nil {
		t.Error("missing include should fail")
	}
}

func TestLoadRecursiveInclude(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.cfg", "[include b.cfg]\n")
	writeConfig(t, dir, "b.cfg", "[include a.cfg]\n")
	if _, err := Load(filepath.Join(dir, "a.cfg")); err == nil {
		t.Error("recursive include should fail")
	}
}

func TestLoadMalformed(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{"option outside section", "speed: 1\n"},
		{"missing separator", "[motor]\nspeed\n"},
		{"empty header", "[]\n"},
	}
	for _, tt := range tests {
		path := writeConfig(t, dir, "bad.cfg", tt.content)
		if _, err := Load(path); err == nil {
			t.Errorf("%s: Load should fail", tt.name)
		}
	}
}

func TestSectionAccessors(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "m.cfg", `
[motor]
speed: 60000
torque: 32768
shaping: true
direction: reverse
inertia: 2.5
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s, _ := cfg.Section("motor")

	if v, err := s.GetBool("shaping"); err != nil || !v {
		t.Errorf("GetBool(shaping) = %v, %v", v, err)
	}
	if v, err := s.GetFloat("inertia"); err != nil || v != 2.5 {
		t.Errorf("GetFloat(inertia) = %v, %v", v, err)
	}
	if v, err := s.GetChoice("direction", []string{"forward", "reverse"}); err != nil || v != "reverse" {
		t.Errorf("GetChoice(direction) = %q, %v", v, err)
	}
	if _, err := s.GetChoice("direction", []string{"up", "down"}); err == nil {
		t.Error("GetChoice should reject values outside the choice list")
	}

	// Fallbacks apply to missing options only.
	if v, err := s.Get("name", "default"); err != nil || v != "default" {
		t.Errorf("Get(name, default) = %q, %v", v, err)
	}
	if _, err := s.Get("name"); err == nil {
		t.Error("Get without fallback should fail on a missing option")
	}

	lo, hi := 0, 1000
	if _, err := s.GetIntWithBounds("speed", &lo, &hi); err == nil {
		t.Error("GetIntWithBounds should reject out-of-range values")
	}
}

func TestUnusedOptions(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "m.cfg", "[motor]\nspeed: 1\ntypo_option: 2\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s, _ := cfg.Section("motor")
	s.GetInt("speed")

	unused := cfg.UnusedOptions()
	if got := unused["motor"]; len(got) != 1 || got[0] != "typo_option" {
		t.Errorf("UnusedOptions() = %v, want motor:[typo_option]", unused)
	}
}

func TestParseHostDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "m.cfg", "[motor]\nname: spinner\n")
	hc, err := ParseHostConfig(path)
	if err != nil {
		t.Fatalf("ParseHostConfig: %v", err)
	}
	if hc.Motor.Name != "spinner" || !hc.Motor.Forward || hc.Motor.Speed != 0 {
		t.Errorf("motor config = %+v", hc.Motor)
	}
	if hc.Loop.TickRate != 10000 || hc.Loop.StatusInterval != 1000 {
		t.Errorf("loop config = %+v", hc.Loop)
	}
	if hc.Telemetry.Enable || hc.Telemetry.Listen != ":7220" {
		t.Errorf("telemetry config = %+v", hc.Telemetry)
	}
	if hc.Link.Baud != 250000 {
		t.Errorf("link config = %+v", hc.Link)
	}
}

func TestParseHostRequiresMotorSection(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "m.cfg", "[loop]\ntick_rate: 100\n")
	if _, err := ParseHostConfig(path); err == nil {
		t.Error("missing [motor] section should fail")
	}
}

func TestParseHostFull(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "m.cfg", `
[motor]
name: main
direction: reverse
speed: 61000
torque: 40000
ramp_percent: 30
shaping: true

[loop]
tick_rate: 20000
status_interval: 500

[telemetry]
enable: true
listen: :8080

[link]
device: /dev/ttyACM0
baud: 115200

[simulator]
pole_pairs: 2
inertia: 3.5
friction: 0.01
`)
	hc, err := ParseHostConfig(path)
	if err != nil {
		t.Fatalf("ParseHostConfig: %v", err)
	}
	if hc.Motor.Forward || hc.Motor.Speed != 61000 || hc.Motor.RampPercent != 30 || !hc.Motor.Shaping {
		t.Errorf("motor config = %+v", hc.Motor)
	}
	if hc.Loop.TickRate != 20000 || hc.Loop.StatusInterval != 500 {
		t.Errorf("loop config = %+v", hc.Loop)
	}
	if hc.Link.Device != "/dev/ttyACM0" || hc.Link.Baud != 115200 {
		t.Errorf("link config = %+v", hc.Link)
	}
	if hc.Simulator.PolePairs != 2 || hc.Simulator.Inertia != 3.5 || hc.Simulator.Friction != 0.01 {
		t.Errorf("simulator config = %+v", hc.Simulator)
	}
}
