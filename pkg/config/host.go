package config

// HostConfig is the fully parsed daemon configuration.
type HostConfig struct {
	Motor     MotorConfig
	Loop      LoopConfig
	Telemetry TelemetryConfig
	Link      LinkConfig
	Simulator SimulatorConfig
}

// MotorConfig holds the per-motor drive settings.
type MotorConfig struct {
	Name        string
	Forward     bool   // rotation direction
	Speed       uint16 // initial speed command; 0 leaves the motor stopped
	Torque      uint16
	RampPercent uint8 // trapezoidal ramp share of each step, 0-100
	Shaping     bool  // enable the trapezoidal duty shaper
}

// LoopConfig holds the tick loop settings.
type LoopConfig struct {
	// TickRate is the tick frequency in Hz driving the controller.
	TickRate int

	// StatusInterval is how many ticks pass between telemetry snapshots.
	StatusInterval int
}

// TelemetryConfig holds the telemetry server settings.
type TelemetryConfig struct {
	Enable bool
	Listen string
}

// LinkConfig holds the drive-board serial link settings.
type LinkConfig struct {
	Device string
	Baud   int
}

// SimulatorConfig holds the motor plant model settings.
type SimulatorConfig struct {
	// PolePairs is the rotor pole pair count; six commutation steps span
	// one electrical revolution.
	PolePairs int

	// Inertia scales how slowly the simulated rotor changes speed.
	Inertia float64

	// Friction is the speed-proportional drag coefficient.
	Friction float64
}

// ParseHostConfig loads and validates the daemon configuration.
func ParseHostConfig(path string) (*HostConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return ParseHost(cfg)
}

// ParseHost extracts the daemon configuration from a parsed Config.
func ParseHost(cfg *Config) (*HostConfig, error) {
	hc := &HostConfig{}

	motor, err := cfg.Section("motor")
	if err != nil {
		return nil, err
	}
	if hc.Motor.Name, err = motor.Get("name", "motor"); err != nil {
		return nil, err
	}
	dir, err := motor.GetChoice("direction", []string{"forward", "reverse"}, "forward")
	if err != nil {
		return nil, err
	}
	hc.Motor.Forward = dir == "forward"

	zero, maxU16 := 0, 65535
	speed, err := motor.GetIntWithBounds("speed", &zero, &maxU16, 0)
	if err != nil {
		return nil, err
	}
	hc.Motor.Speed = uint16(speed)
	torque, err := motor.GetIntWithBounds("torque", &zero, &maxU16, 32768)
	if err != nil {
		return nil, err
	}
	hc.Motor.Torque = uint16(torque)
	maxPct := 100
	ramp, err := motor.GetIntWithBounds("ramp_percent", &zero, &maxPct, 0)
	if err != nil {
		return nil, err
	}
	hc.Motor.RampPercent = uint8(ramp)
	if hc.Motor.Shaping, err = motor.GetBool("shaping", false); err != nil {
		return nil, err
	}

	loop := cfg.SectionOrDefault("loop")
	one := 1
	if hc.Loop.TickRate, err = loop.GetIntWithBounds("tick_rate", &one, nil, 10000); err != nil {
		return nil, err
	}
	if hc.Loop.StatusInterval, err = loop.GetIntWithBounds("status_interval", &one, nil, 1000); err != nil {
		return nil, err
	}

	tel := cfg.SectionOrDefault("telemetry")
	if hc.Telemetry.Enable, err = tel.GetBool("enable", false); err != nil {
		return nil, err
	}
	if hc.Telemetry.Listen, err = tel.Get("listen", ":7220"); err != nil {
		return nil, err
	}

	link := cfg.SectionOrDefault("link")
	if hc.Link.Device, err = link.Get("device", ""); err != nil {
		return nil, err
	}
	if hc.Link.Baud, err = link.GetIntWithBounds("baud", &one, nil, 250000); err != nil {
		return nil, err
	}

	sim := cfg.SectionOrDefault("simulator")
	if hc.Simulator.PolePairs, err = sim.GetIntWithBounds("pole_pairs", &one, nil, 7); err != nil {
		return nil, err
	}
	if hc.Simulator.Inertia, err = sim.GetFloat("inertia", 1.0); err != nil {
		return nil, err
	}
	if hc.Simulator.Friction, err = sim.GetFloat("friction", 0.002); err != nil {
		return nil, err
	}

	return hc, nil
}
