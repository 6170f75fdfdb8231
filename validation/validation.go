package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator"
	"github.com/meghashyamc/caseindex/db/searchdb"
	"github.com/meghashyamc/caseindex/logger"
	"github.com/meghashyamc/caseindex/services/search"
)

type Validator struct {
	validator                *validator.Validate
	logger                   logger.Logger
	tagValidationDetailsOnce sync.Once
	tagValidationDetailsMap  map[string]tagValidationDetails
}

type tagValidationDetails struct {
	validatorFunc validator.Func
	err           error
}

func New(logger logger.Logger) (*Validator, error) {
	validator := &Validator{validator: validator.New(), logger: logger}
	validator.validator.RegisterTagNameFunc(useJSONFieldNames)
	if err := validator.registerCustomValidatorsForTags(); err != nil {
		return nil, err
	}

	return validator, nil
}

func (v *Validator) Validate(i any) error {

	if err := v.validator.Struct(i); err != nil {
		v.logger.Warn("validation failed", "err", err.Error())
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) && len(validationErrs) > 0 {

			tagValidationDetails, ok := v.getTagValidationDetails()[validationErrs[0].Tag()]
			if ok {
				return tagValidationDetails.err
			}

			switch validationErrs[0].Tag() {
			case "required":
				return fmt.Errorf("missing required field '%s'", validationErrs[0].Field())

			case "min", "max":
				return fmt.Errorf("value or length of field '%s' is not in the expected range", validationErrs[0].Field())

			case "oneof":
				return fmt.Errorf("field '%s' must be one of: %s", validationErrs[0].Field(), validationErrs[0].Param())

			}
		}
		return err
	}
	return nil
}
func (v *Validator) getTagValidationDetails() map[string]tagValidationDetails {
	v.tagValidationDetailsOnce.Do(func() {
		v.tagValidationDetailsMap = map[string]tagValidationDetails{
			"valid_name":         {validatorFunc: v.isValidName, err: errors.New("invalid name")},
			"valid_entity_types": {validatorFunc: v.isValidEntityTypes, err: errors.New("invalid entity type")},
			"valid_entity_type":  {validatorFunc: v.isValidEntityType, err: errors.New("invalid entity type")},
			"valid_date_range":   {validatorFunc: v.isValidDateRange, err: errors.New("date range must not end before it starts")},
		}
	})
	return v.tagValidationDetailsMap
}

func (v *Validator) registerCustomValidatorsForTags() error {

	tagValidationDetailsMap := v.getTagValidationDetails()

	for tag, tagValidationDetails := range tagValidationDetailsMap {
		if err := v.validator.RegisterValidation(tag, tagValidationDetails.validatorFunc); err != nil {
			v.logger.Error("failed to register customer validator function", "err", err.Error())
			return err
		}
	}
	return nil
}

func useJSONFieldNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

func (v *Validator) isValidName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if len(name) == 0 {
		return false
	}
	if strings.TrimSpace(name) == "" {
		v.logger.Warn("name is empty", "name", name)
		return false
	}
	if strings.Contains(name, "\x00") {
		v.logger.Warn("name has null byte", "name", name)
		return false
	}

	return true
}

func (v *Validator) isValidEntityType(fl validator.FieldLevel) bool {
	entityType := searchdb.EntityType(fl.Field().String())
	if !entityType.Valid() {
		v.logger.Warn("unknown entity type", "entity_type", entityType)
		return false
	}
	return true
}

func (v *Validator) isValidEntityTypes(fl validator.FieldLevel) bool {
	entityTypes, ok := fl.Field().Interface().([]searchdb.EntityType)
	if !ok {
		return false
	}
	for _, entityType := range entityTypes {
		if !entityType.Valid() {
			v.logger.Warn("unknown entity type", "entity_type", entityType)
			return false
		}
	}
	return true
}

// isValidDateRange runs on the range's end and compares it with its start.
func (v *Validator) isValidDateRange(fl validator.FieldLevel) bool {
	parent := fl.Parent()
	if parent.Kind() == reflect.Ptr {
		parent = parent.Elem()
	}
	dateRange, ok := parent.Interface().(search.DateRange)
	if !ok {
		return false
	}
	if dateRange.From == nil || dateRange.To == nil {
		return true
	}
	return !dateRange.To.Before(*dateRange.From)
}
