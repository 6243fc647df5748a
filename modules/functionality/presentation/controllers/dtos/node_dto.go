package dtos

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/iota-uz/functree/modules/functionality/services"
	"github.com/iota-uz/functree/pkg/constants"
)

type CreateNodeDTO struct {
	Kind             string     `json:"kind" validate:"required,oneof=folder functionality"`
	Name             string     `json:"name" validate:"required,max=255"`
	ReferenceID      *uuid.UUID `json:"reference_id"`
	RelativePosition string     `json:"relative_position" validate:"omitempty,max=32"`
}

// Ok reports validation failures keyed by json field name.
func (d *CreateNodeDTO) Ok() (map[string]string, bool) {
	d.Name = strings.TrimSpace(d.Name)
	return validationMessages(constants.Validate.Struct(d))
}

func (d *CreateNodeDTO) ToInput() (services.CreateNodeInput, error) {
	kind, err := services.ParseNodeKind(d.Kind)
	if err != nil {
		return services.CreateNodeInput{}, err
	}
	pos, err := services.ParseRelativePosition(d.RelativePosition)
	if err != nil {
		return services.CreateNodeInput{}, err
	}
	return services.CreateNodeInput{
		Kind:        kind,
		Name:        d.Name,
		ReferenceID: d.ReferenceID,
		Position:    pos,
	}, nil
}

type MoveNodeDTO struct {
	ReferenceID      *uuid.UUID `json:"reference_id"`
	RelativePosition string     `json:"relative_position" validate:"omitempty,max=32"`
}

func (d *MoveNodeDTO) Ok() (map[string]string, bool) {
	return validationMessages(constants.Validate.Struct(d))
}

func (d *MoveNodeDTO) ToInput(nodeID uuid.UUID) (services.MoveNodeInput, error) {
	pos, err := services.ParseRelativePosition(d.RelativePosition)
	if err != nil {
		return services.MoveNodeInput{}, err
	}
	return services.MoveNodeInput{
		NodeID:      nodeID,
		ReferenceID: d.ReferenceID,
		Position:    pos,
	}, nil
}

type UpdateNodeDTO struct {
	Name string `json:"name" validate:"required,max=255"`
}

func (d *UpdateNodeDTO) Ok() (map[string]string, bool) {
	d.Name = strings.TrimSpace(d.Name)
	return validationMessages(constants.Validate.Struct(d))
}

func validationMessages(errs error) (map[string]string, bool) {
	out := map[string]string{}
	if errs == nil {
		return out, true
	}
	validationErrs, ok := errs.(validator.ValidationErrors)
	if !ok {
		out["_"] = errs.Error()
		return out, false
	}
	for _, err := range validationErrs {
		field := jsonFieldName(err.Field())
		if err.Param() != "" {
			out[field] = fmt.Sprintf("%s: %s", err.Tag(), err.Param())
		} else {
			out[field] = err.Tag()
		}
	}
	return out, len(out) == 0
}

func jsonFieldName(field string) string {
	switch field {
	case "ReferenceID":
		return "reference_id"
	case "RelativePosition":
		return "relative_position"
	default:
		return strings.ToLower(field)
	}
}
