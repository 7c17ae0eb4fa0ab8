package config

import (
	"errors"
	"fmt"
)

var validFlirtCosts = map[string]struct{}{
	"mutualinfo": {},
	"corratio":   {},
	"normcorr":   {},
	"normmi":     {},
	"leastsq":    {},
	"labeldiff":  {},
	"bbr":        {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePreproc(); err != nil {
		return err
	}
	if err := c.validateTract(); err != nil {
		return err
	}
	if err := c.validateConnectome(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePreproc() error {
	if c.Preproc.BetFraction < 0 || c.Preproc.BetFraction > 1 {
		return errors.New("preproc.bet_fraction must be between 0 and 1")
	}
	if c.Preproc.FastClasses < 2 || c.Preproc.FastClasses > 4 {
		return errors.New("preproc.fast_classes must be 2, 3, or 4")
	}
	switch c.Preproc.FlirtDOF {
	case 6, 7, 9, 12:
	default:
		return errors.New("preproc.flirt_dof must be one of 6, 7, 9, 12")
	}
	if _, ok := validFlirtCosts[c.Preproc.FlirtCost]; !ok {
		return fmt.Errorf("preproc.flirt_cost %q is not a flirt cost function", c.Preproc.FlirtCost)
	}
	return nil
}

func (c *Config) validateTract() error {
	if c.Tract.Curvature >= 1 {
		return errors.New("tract.curvature must be below 1 (cosine of the bend angle)")
	}
	return nil
}

func (c *Config) validateConnectome() error {
	switch c.Connectome.Normalize {
	case "waytotal", "none":
	default:
		return fmt.Errorf("connectome.normalize must be \"waytotal\" or \"none\", got %q", c.Connectome.Normalize)
	}
	if c.Connectome.ThresholdProportion < 0 || c.Connectome.ThresholdProportion >= 1 {
		return errors.New("connectome.threshold_proportion must be in [0, 1)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	return nil
}
