package content

import (
	"fmt"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"folio/internal/config"
	"folio/internal/domain"
	models "folio/internal/domain/models/content"
	contentSvc "folio/internal/domain/services/content"
)

// aliasPattern matches names usable as XML element names
var aliasPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_\-]*$`)

var aliasRules = []validation.Rule{
	validation.Required,
	validation.Length(1, config.MaxAliasLength),
	validation.Match(aliasPattern).Error("must start with a letter or underscore and contain only letters, digits, '_' or '-'"),
}

func validateProperty(value interface{}) error {
	p, ok := value.(models.Property)
	if !ok {
		return fmt.Errorf("unexpected property type %T", value)
	}
	return validation.ValidateStruct(&p,
		validation.Field(&p.Alias, aliasRules...),
		validation.Field(&p.Kind, validation.Required, validation.In(models.PropertyText, models.PropertyUpload, models.PropertyTags)),
		validation.Field(&p.Value, validation.Length(0, config.MaxPropertyValueLength)),
	)
}

func propertyRules() []validation.Rule {
	return []validation.Rule{
		validation.Length(0, config.MaxPropertiesPerVersion),
		validation.Each(validation.By(validateProperty)),
		validation.By(uniqueAliases),
	}
}

func uniqueAliases(value interface{}) error {
	props, _ := value.([]models.Property)
	seen := make(map[string]bool, len(props))
	for _, p := range props {
		if seen[p.Alias] {
			return fmt.Errorf("duplicate alias %q", p.Alias)
		}
		seen[p.Alias] = true
	}
	return nil
}

func validateCreate(req *contentSvc.CreateRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	err := validation.ValidateStruct(req,
		validation.Field(&req.Name, validation.Required, validation.Length(1, config.MaxNodeNameLength)),
		validation.Field(&req.ContentType, aliasRules...),
		validation.Field(&req.Properties, propertyRules()...),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

func validateSave(req *contentSvc.SaveRequest) error {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		req.Name = &name
	}
	err := validation.ValidateStruct(req,
		validation.Field(&req.Name, validation.NilOrNotEmpty, validation.Length(1, config.MaxNodeNameLength)),
		validation.Field(&req.Properties, propertyRules()...),
	)
	if err == nil && req.ClearTemplate && req.TemplateID != nil {
		err = fmt.Errorf("template_id: cannot set and clear the template at once")
	}
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}
