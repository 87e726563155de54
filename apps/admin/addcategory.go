package main

import (
	"context"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/blockward/blockward/core"
	"github.com/blockward/blockward/core/award"
)

// addCategory creates a new award.Category
func (cli *commandLine) addCategory(name, polarity string, magnitude int, color string) error {
	nc := award.NewCategory{
		Name:      name,
		Polarity:  award.Polarity(polarity),
		Magnitude: magnitude,
		Color:     color,
	}
	if err := nc.Validate(newCategoryValidator()); err != nil {
		return err
	}

	if magnitude < 0 {
		magnitude = -magnitude
	}
	now := time.Now().UTC()
	cat := award.Category{
		ID:        uuid.New().String(),
		Name:      nc.Name,
		Polarity:  nc.Polarity,
		Magnitude: magnitude,
		Color:     nc.Color,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := cli.awdRepo.CreateCategory(context.Background(), cat); err != nil {
		return err
	}
	return nil
}

func newCategoryValidator() *validator.Validate {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	award.InitValidators(validate, translator)
	return validate
}
