package httpapi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

const createOrderSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["partner_id", "items"],
  "properties": {
    "partner_id": { "type": "string", "minLength": 1 },
    "items": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["product_id", "quantity", "price"],
        "properties": {
          "product_id": { "type": "string", "minLength": 1 },
          "quantity": { "type": "integer", "minimum": 1, "maximum": 10000 },
          "price": {
            "oneOf": [
              { "type": "number", "minimum": 0, "maximum": 9999999999.99 },
              { "type": "string", "pattern": "^[0-9]{1,10}(\\.[0-9]{1,2})?$" }
            ]
          }
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`

const updateStatusSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["status"],
  "properties": {
    "status": { "type": "string" }
  },
  "additionalProperties": false
}`

const productSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name", "price"],
  "properties": {
    "name": { "type": "string", "minLength": 1, "maxLength": 200 },
    "description": { "type": "string" },
    "price": {
      "oneOf": [
        { "type": "number", "minimum": 0, "maximum": 9999999999.99 },
        { "type": "string", "pattern": "^[0-9]{1,10}(\\.[0-9]{1,2})?$" }
      ]
    },
    "available": { "type": "boolean" }
  },
  "additionalProperties": false
}`

const profileSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "name": { "type": "string", "minLength": 1, "maxLength": 200 },
    "description": { "type": "string" },
    "address": { "type": "string" },
    "phone": { "type": "string", "maxLength": 32 }
  },
  "additionalProperties": false
}`

const promotionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["title"],
  "properties": {
    "title": { "type": "string", "minLength": 1, "maxLength": 200 },
    "description": { "type": "string" },
    "image_url": { "type": "string" },
    "discount_percent": {
      "oneOf": [
        { "type": "null" },
        { "type": "number", "minimum": 0, "maximum": 100 },
        { "type": "string", "pattern": "^[0-9]{1,3}(\\.[0-9]{1,2})?$" }
      ]
    },
    "is_active": { "type": "boolean" },
    "expires_at": {
      "oneOf": [
        { "type": "null" },
        { "type": "string", "format": "date-time" }
      ]
    }
  },
  "additionalProperties": false
}`

var (
	createOrderLoader  = gojsonschema.NewStringLoader(createOrderSchema)
	updateStatusLoader = gojsonschema.NewStringLoader(updateStatusSchema)
	productLoader      = gojsonschema.NewStringLoader(productSchema)
	profileLoader      = gojsonschema.NewStringLoader(profileSchema)
	promotionLoader    = gojsonschema.NewStringLoader(promotionSchema)
)

// decodeValidated проверяет тело по схеме и только потом декодирует его в dst.
func decodeValidated(loader gojsonschema.JSONLoader, body []byte, dst any) error {
	result, err := gojsonschema.Validate(loader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("%w: malformed json: %v", domain.ErrInvalidRequest, err)
	}
	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}
		return fmt.Errorf("%w: %s", domain.ErrInvalidRequest, strings.Join(messages, "; "))
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	return nil
}
