package bnp

import (
	"os"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"leagues_go/pricing"
)

// Parameters tune the branch-and-price search. A JSON file with the same
// keys also loads, JSON being a subset of YAML.
type Parameters struct {
	NThreads             int              `yaml:"nThreads"`
	CyclicBFS            bool             `yaml:"cyclicBFS"`
	LimitPricingIters    bool             `yaml:"limitPricingIters"`
	MaxItersPricing      int              `yaml:"maxItersPricing"`
	RemoveColumns        bool             `yaml:"removeColumns"`
	ItersColumnLife      int              `yaml:"itersColumnLife"`
	ColumnMinReducedCost float64          `yaml:"columnMinReducedCost"`
	Populate             bool             `yaml:"populate"`
	PopulateLimit        int              `yaml:"populateLimit"`
	PrintPricing         bool             `yaml:"printPricing"`
	StrongBranching      int              `yaml:"strongBranching"`
	TimeLimit            time.Duration    `yaml:"timeLimit"`
	WarmStartWidth       int              `yaml:"warmStartWidth"`
	PricingStrategy      pricing.Strategy `yaml:"pricingStrategy"`
}

func DefaultParameters() Parameters {
	return Parameters{
		NThreads:             max(2, runtime.NumCPU()/2),
		MaxItersPricing:      50,
		RemoveColumns:        true,
		ItersColumnLife:      1000,
		ColumnMinReducedCost: 1.0,
		PopulateLimit:        1000,
		StrongBranching:      1,
		TimeLimit:            10 * time.Minute,
		PricingStrategy:      pricing.StrategyHeuristic,
	}
}

// LoadParameters overlays the file at path on the defaults. A missing file
// yields the defaults.
func LoadParameters(path string) (Parameters, error) {
	params := DefaultParameters()
	fileBytes, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return params, nil
	}
	if err != nil {
		return params, errors.Wrapf(err, "reading parameters %s", path)
	}
	if err = yaml.Unmarshal(fileBytes, &params); err != nil {
		return params, errors.Wrapf(err, "parsing parameters %s", path)
	}
	return params, params.Validate()
}

func (p Parameters) Validate() error {
	if p.NThreads < 1 {
		return errors.Errorf("nThreads must be positive, got %d", p.NThreads)
	}
	if p.StrongBranching < 1 {
		return errors.Errorf("strongBranching must be positive, got %d", p.StrongBranching)
	}
	if p.PopulateLimit < 1 {
		return errors.Errorf("populateLimit must be positive, got %d", p.PopulateLimit)
	}
	_, err := pricing.ParseStrategy(string(p.PricingStrategy))
	return err
}

func (p Parameters) Write(path string) error {
	out, err := yaml.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "encoding parameters")
	}
	return errors.Wrapf(os.WriteFile(path, out, 0o644), "writing parameters %s", path)
}
