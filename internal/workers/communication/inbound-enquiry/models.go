// internal/workers/communication/inbound-enquiry/models.go
package inboundenquiry

// payloadSchema describes POST /incoming-enquiry. Unknown fields are ignored.
const payloadSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["platform", "user_query", "user_phone_number"],
  "properties": {
    "platform":          {"type": "string", "minLength": 1},
    "user_query":        {"type": "string", "minLength": 1, "pattern": "\\S"},
    "user_phone_number": {"type": "string", "minLength": 1}
  }
}`
