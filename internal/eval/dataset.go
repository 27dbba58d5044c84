package eval

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mercavo/tradesearch/internal/catalog"
	tserr "github.com/mercavo/tradesearch/internal/errors"
)

// Judgment is one judged query: the query text, optional filters that scope
// the retrieval, and the IDs a good system should return for it.
type Judgment struct {
	Query       string   `yaml:"query"`
	EntityType  string   `yaml:"entity_type"`
	CategoryID  string   `yaml:"category_id,omitempty"`
	Country     string   `yaml:"country,omitempty"`
	RelevantIDs []string `yaml:"relevant_ids"`
}

// Dataset is a judged query collection.
type Dataset struct {
	Judgments []Judgment `yaml:"judgments"`
}

// LoadDataset reads a YAML judgment file.
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, tserr.New(tserr.ErrCodeInvalidInput,
			fmt.Sprintf("cannot read eval dataset %s", path), err)
	}

	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, tserr.New(tserr.ErrCodeInvalidInput, "malformed eval dataset", err)
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return &ds, nil
}

// Validate checks every judgment has a query, a known entity type, and at
// least one relevant ID.
func (d *Dataset) Validate() error {
	if len(d.Judgments) == 0 {
		return tserr.InvalidInput("eval dataset has no judgments")
	}
	for i, j := range d.Judgments {
		if j.Query == "" {
			return tserr.InvalidInput(fmt.Sprintf("judgment %d: query is required", i))
		}
		if !catalog.EntityType(j.EntityType).Valid() {
			return tserr.InvalidInput(fmt.Sprintf(
				"judgment %d: entity type must be product or supplier, got %q", i, j.EntityType))
		}
		if len(j.RelevantIDs) == 0 {
			return tserr.InvalidInput(fmt.Sprintf("judgment %d: relevant_ids is empty", i))
		}
	}
	return nil
}

// relevantSet converts the ID list into a lookup set.
func (j Judgment) relevantSet() map[string]bool {
	set := make(map[string]bool, len(j.RelevantIDs))
	for _, id := range j.RelevantIDs {
		set[id] = true
	}
	return set
}
