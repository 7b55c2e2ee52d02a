package nextcloud

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strconv"
)

// The OCS API answers either with a JSON envelope or, on older servers and
// v1 endpoints, with a legacy XML envelope of the same logical shape. Each
// decode below is an ordered list of decoders tried in sequence: JSON first,
// XML second, each either producing the target shape or declining.

const metaStatusOK = 100

// meta is the OCS meta section carrying the application level status.
type meta struct {
	Status     string
	StatusCode int
	Message    string
}

// OK reports whether the meta section encodes application level success.
func (m meta) OK() bool {
	return m.Status == "ok" || m.StatusCode == metaStatusOK
}

// Describe renders the meta for logs and error messages.
func (m meta) Describe() string {
	if m.Message != "" {
		return fmt.Sprintf("status %d (%s)", m.StatusCode, m.Message)
	}

	return fmt.Sprintf("status %d", m.StatusCode)
}

type jsonMeta struct {
	Status     string      `json:"status"`
	StatusCode json.Number `json:"statuscode"`
	Message    string      `json:"message"`
}

type jsonEnvelope struct {
	OCS struct {
		Meta jsonMeta        `json:"meta"`
		Data json.RawMessage `json:"data"`
	} `json:"ocs"`
}

type xmlList struct {
	Elements []string `xml:"element"`
}

type xmlEnvelope struct {
	XMLName xml.Name `xml:"ocs"`
	Meta    struct {
		Status     string `xml:"status"`
		StatusCode string `xml:"statuscode"`
		Message    string `xml:"message"`
	} `xml:"meta"`
	Data struct {
		Groups      xmlList `xml:"groups"`
		Users       xmlList `xml:"users"`
		DisplayName string  `xml:"displayname"`
	} `xml:"data"`
}

// decodeMeta extracts the OCS meta section from a response body.
func decodeMeta(body []byte) (meta, error) {
	if env, err := decodeJSON(body); err == nil {
		code, _ := env.OCS.Meta.StatusCode.Int64()

		return meta{
			Status:     env.OCS.Meta.Status,
			StatusCode: int(code),
			Message:    env.OCS.Meta.Message,
		}, nil
	}

	if env, err := decodeXML(body); err == nil {
		code, _ := strconv.Atoi(env.Meta.StatusCode)

		return meta{
			Status:     env.Meta.Status,
			StatusCode: code,
			Message:    env.Meta.Message,
		}, nil
	}

	return meta{}, ErrInvalidResponse
}

// decodeStringList extracts a named list of strings (groups or users) from
// a response body, tolerating the plural shapes the server emits.
func decodeStringList(body []byte, field string) ([]string, error) {
	if env, err := decodeJSON(body); err == nil && len(env.OCS.Data) > 0 {
		var data map[string]json.RawMessage
		if err := json.Unmarshal(env.OCS.Data, &data); err == nil {
			if raw, ok := data[field]; ok {
				if list, err := jsonStringList(raw); err == nil {
					return list, nil
				}
			}
		}
	}

	if env, err := decodeXML(body); err == nil {
		switch field {
		case "groups":
			return env.Data.Groups.Elements, nil
		case "users":
			return env.Data.Users.Elements, nil
		}
	}

	return nil, fmt.Errorf("%w: no %s list", ErrInvalidResponse, field)
}

// decodeDisplayName extracts the display name from a user detail response.
// Servers disagree both on nesting and on the key spelling, so a handful of
// known shapes are tried before giving up.
func decodeDisplayName(body []byte) (string, error) {
	if env, err := decodeJSON(body); err == nil && len(env.OCS.Data) > 0 {
		var data map[string]json.RawMessage
		if err := json.Unmarshal(env.OCS.Data, &data); err == nil {
			// some versions nest the payload one level deeper
			if inner, ok := data["data"]; ok {
				var nested map[string]json.RawMessage
				if err := json.Unmarshal(inner, &nested); err == nil {
					data = nested
				}
			}

			for _, key := range []string{"displayname", "display-name", "display_name", "name"} {
				raw, ok := data[key]
				if !ok {
					continue
				}

				var name string
				if err := json.Unmarshal(raw, &name); err == nil && name != "" {
					return name, nil
				}
			}
		}
	}

	if env, err := decodeXML(body); err == nil && env.Data.DisplayName != "" {
		return env.Data.DisplayName, nil
	}

	return "", fmt.Errorf("%w: no display name", ErrInvalidResponse)
}

// jsonStringList decodes the three shapes a string list arrives in: a plain
// array, an object wrapping an "element" array or scalar, or a bare string.
func jsonStringList(raw json.RawMessage) ([]string, error) {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var wrapped struct {
		Element json.RawMessage `json:"element"`
	}

	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Element) > 0 {
		if err := json.Unmarshal(wrapped.Element, &list); err == nil {
			return list, nil
		}

		var single string
		if err := json.Unmarshal(wrapped.Element, &single); err == nil {
			return []string{single}, nil
		}
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single == "" {
			return []string{}, nil
		}

		return []string{single}, nil
	}

	return nil, ErrInvalidResponse
}

func decodeJSON(body []byte) (jsonEnvelope, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return env, err //nolint: wrapcheck
	}

	return env, nil
}

func decodeXML(body []byte) (xmlEnvelope, error) {
	var env xmlEnvelope
	if err := xml.Unmarshal(body, &env); err != nil {
		return env, err //nolint: wrapcheck
	}

	return env, nil
}
