package models

import (
	"encoding/json"
	"errors"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var digitsPattern = regexp.MustCompile(`^\d+$`)

// inputValidate is shared by every request type in this package.
var inputValidate *validator.Validate

func init() {
	inputValidate = validator.New()
	inputValidate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = inputValidate.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
		return digitsPattern.MatchString(fl.Field().String())
	})
	_ = inputValidate.RegisterValidation("ddmmyyyy", func(fl validator.FieldLevel) bool {
		_, err := ParseDate(fl.Field().String())
		return err == nil
	})
}

// NumericText keeps a form value as text whether the client sent it as a JSON
// number or a string, so the digit pattern is checked on what the user typed.
type NumericText string

func (n *NumericText) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = NumericText(strings.TrimSpace(s))
		return nil
	}
	*n = NumericText(strings.TrimSpace(string(data)))
	return nil
}

// ProductInput is the raw product form.
type ProductInput struct {
	ID           *ProductID  `json:"id,omitempty"`
	Name         string      `json:"name" validate:"required"`
	Category     string      `json:"category" validate:"required"`
	Volume       NumericText `json:"volume" validate:"required,digits"`
	PurchaseDate string      `json:"purchaseDate" validate:"required,ddmmyyyy"`
	DailyUsage   NumericText `json:"dailyUsage" validate:"required,digits"`
	AutoTracking bool        `json:"autoTracking"`
}

// ProductFields are the validated, typed values of a ProductInput.
type ProductFields struct {
	Name         string
	Category     Category
	Volume       int
	PurchaseDate string
	DailyUsage   int
	EndDate      string
	AutoTracking bool
}

var fieldMessages = map[string]string{
	"name":         "enter the product name",
	"category":     "choose a category",
	"volume":       "volume must be a whole number of grams",
	"purchaseDate": "enter the date as DD.MM.YYYY",
	"dailyUsage":   "daily usage must be a whole number of grams",
}

// Parse validates the form and computes the derived end date.
func (in ProductInput) Parse() (ProductFields, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	in.PurchaseDate = strings.TrimSpace(in.PurchaseDate)

	verr := &ValidationError{}
	if err := inputValidate.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return ProductFields{}, err
		}
		for _, fe := range fieldErrs {
			verr.Add(fe.Field(), fieldMessages[fe.Field()])
		}
		return ProductFields{}, verr
	}

	volume, err := strconv.Atoi(string(in.Volume))
	if err != nil {
		verr.Add("volume", fieldMessages["volume"])
	}
	dailyUsage, err := strconv.Atoi(string(in.DailyUsage))
	if err != nil {
		verr.Add("dailyUsage", fieldMessages["dailyUsage"])
	} else if dailyUsage == 0 {
		verr.Add("dailyUsage", "daily usage must be greater than zero")
	}
	if !verr.Empty() {
		return ProductFields{}, verr
	}

	endDate, err := EndDate(in.PurchaseDate, volume, dailyUsage)
	if err != nil {
		return ProductFields{}, err
	}

	return ProductFields{
		Name:         in.Name,
		Category:     NormalizeCategory(in.Category),
		Volume:       volume,
		PurchaseDate: in.PurchaseDate,
		DailyUsage:   dailyUsage,
		EndDate:      endDate,
		AutoTracking: in.AutoTracking,
	}, nil
}

// StockAdjustment is the body of consume and restock requests.
type StockAdjustment struct {
	Amount int `json:"amount" validate:"required,gt=0"`
}

// Validate checks the adjustment amount.
func (a StockAdjustment) Validate() error {
	if err := inputValidate.Struct(a); err != nil {
		return NewValidationError("amount", "amount must be a positive number")
	}
	return nil
}
