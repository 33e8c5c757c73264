package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/huangang/taskboard/internal/services"
	"github.com/huangang/taskboard/pkg/response"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
	}
}

// jsonFieldName makes validation errors name fields the way clients send them.
func jsonFieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

// bindJSON decodes the body into obj. An empty body is validated as an empty object.
func bindJSON(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		if errors.Is(err, io.EOF) {
			if verr := binding.Validator.ValidateStruct(obj); verr != nil {
				return bindError(verr)
			}
			return nil
		}
		return bindError(err)
	}
	return nil
}

// bindError converts a gin binding failure into a validation AppError.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = validationMessage(fe)
		}
		if len(fields) == 1 {
			for field, msg := range fields {
				return response.NewValidation(field, msg)
			}
		}
		return response.NewValidationFields(fields)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		if typeErr.Type == services.DateType {
			return response.NewValidation(typeErr.Field, "Date has wrong format. Use YYYY-MM-DD.")
		}
		return response.NewValidation(typeErr.Field, fmt.Sprintf("Expected %s.", typeErr.Type))
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return response.NewBadRequest("JSON parse error: " + syntaxErr.Error())
	}
	return response.NewBadRequest(err.Error())
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "max":
		return "Ensure this field has no more than " + fe.Param() + " characters."
	case "min":
		return "Ensure this value is at least " + fe.Param() + "."
	default:
		return "Invalid value (" + fe.Tag() + ")."
	}
}

// parseID reads a numeric path parameter. Anything else is reported as a missing resource.
func parseID(c *gin.Context, param, resource string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		response.Error(c, response.NewNotFound(resource))
		return 0, false
	}
	return uint(id), true
}
