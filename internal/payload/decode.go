package payload

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Decode reads and validates a payload document.
func Decode(r io.Reader) (*GraphPayload, error) {
	var p GraphPayload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the structural rules of the payload.
func (p *GraphPayload) Validate() error {
	if err := validatorInstance().Struct(p); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}
