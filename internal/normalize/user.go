// Package normalize turns loosely shaped profile payloads into model.User.
package normalize

import (
	"authclient/internal/model"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DefaultPic is used when the payload carries no avatar.
const DefaultPic = "./assets/media/avatars/blank.png"

// CanonicalKey marks a payload produced by Canonical. Such payloads decode
// field for field and skip the defaulting rules.
const CanonicalKey = "_normalized"

// Recognized alternate field names, in priority order.
var (
	fullnameKeys = []string{"full_name", "fullname", "name", "firstname"}
	usernameKeys = []string{"username", "email"}
	picKeys      = []string{"avatar", "pic"}
	companyKeys  = []string{"companyName", "company_name"}
	socialKeys   = []string{"socialNetworks", "social_networks"}
)

// ParseError is returned when the payload is not an object at all.
type ParseError struct {
	Got string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("normalize: user payload must be an object, got %s", e.Got)
}

type Option func(*options)

type options struct {
	pic string
}

// WithPlaceholderPic overrides DefaultPic.
func WithPlaceholderPic(path string) Option {
	return func(o *options) {
		if path = strings.TrimSpace(path); path != "" {
			o.pic = path
		}
	}
}

// ParseUser accepts any decoded JSON value. Objects always normalize; every
// other shape is a *ParseError.
func ParseUser(raw any, opts ...Option) (model.User, error) {
	data, ok := raw.(map[string]any)
	if !ok || data == nil {
		return model.User{}, &ParseError{Got: typeName(raw)}
	}
	return Normalize(data, opts...), nil
}

// ParseUserJSON decodes b and hands it to ParseUser.
func ParseUserJSON(b []byte, opts ...Option) (model.User, error) {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return model.User{}, fmt.Errorf("normalize: decode user: %w", err)
	}
	return ParseUser(raw, opts...)
}

// Normalize never fails; missing or wrong-typed fields get zero defaults.
func Normalize(data map[string]any, opts ...Option) model.User {
	if marked, _ := data[CanonicalKey].(bool); marked {
		var u model.User
		if decodeInto(data, &u) {
			u.Password = ""
			return u
		}
	}

	o := options{pic: DefaultPic}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	fullname := firstString(data, fullnameKeys...)
	parts := strings.Fields(fullname)

	firstname := stringField(data, "firstname")
	if firstname == "" && len(parts) > 0 {
		firstname = parts[0]
	}
	lastname := stringField(data, "lastname")
	if lastname == "" && len(parts) > 1 {
		lastname = strings.Join(parts[1:], " ")
	}

	pic := firstString(data, picKeys...)
	if pic == "" {
		pic = o.pic
	}

	user := model.User{
		ID:          intField(data, "id"),
		Username:    firstString(data, usernameKeys...),
		Fullname:    fullname,
		Firstname:   firstname,
		Lastname:    lastname,
		Email:       stringField(data, "email"),
		Pic:         pic,
		Roles:       roles(data),
		Occupation:  stringField(data, "occupation"),
		CompanyName: firstString(data, companyKeys...),
		Phone:       stringField(data, "phone"),
	}

	if v, ok := data["address"].(map[string]any); ok {
		addr := &model.Address{}
		if decodeInto(v, addr) {
			user.Address = addr
		}
	}
	for _, key := range socialKeys {
		if v, ok := data[key].(map[string]any); ok {
			sn := &model.SocialNetworks{}
			if decodeInto(v, sn) {
				user.SocialNetworks = sn
			}
			break
		}
	}

	return user
}

// ToMap is the inverse used when persisting: the output normalizes back to
// the same user.
func ToMap(u model.User) map[string]any {
	out := map[string]any{
		"id":          u.ID,
		"username":    u.Username,
		"fullname":    u.Fullname,
		"firstname":   u.Firstname,
		"lastname":    u.Lastname,
		"email":       u.Email,
		"pic":         u.Pic,
		"roles":       append([]string{}, u.Roles...),
		"occupation":  u.Occupation,
		"companyName": u.CompanyName,
		"phone":       u.Phone,
	}
	if u.Address != nil {
		out["address"] = map[string]any{
			"addressLine": u.Address.AddressLine,
			"city":        u.Address.City,
			"state":       u.Address.State,
			"postCode":    u.Address.PostCode,
		}
	}
	if u.SocialNetworks != nil {
		out["socialNetworks"] = map[string]any{
			"linkedIn":  u.SocialNetworks.LinkedIn,
			"facebook":  u.SocialNetworks.Facebook,
			"twitter":   u.SocialNetworks.Twitter,
			"instagram": u.SocialNetworks.Instagram,
		}
	}
	return out
}

// Canonical is the persisted form of u. It decodes back to u exactly,
// minus the password, which is never stored.
func Canonical(u model.User) map[string]any {
	u.Password = ""
	out := map[string]any{}
	b, err := json.Marshal(u)
	if err != nil || json.Unmarshal(b, &out) != nil {
		out = ToMap(u)
	}
	out[CanonicalKey] = true
	return out
}

func roles(data map[string]any) []string {
	out := []string{}
	switch v := data["roles"].(type) {
	case []any:
		for _, r := range v {
			if s, ok := r.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return append(out, v...)
	case string:
		if v != "" {
			return append(out, v)
		}
		return out
	}
	if role := stringField(data, "role"); role != "" {
		out = append(out, role)
	}
	return out
}

func firstString(data map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := stringField(data, key); s != "" {
			return s
		}
	}
	return ""
}

func stringField(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}

func intField(data map[string]any, key string) int64 {
	switch v := data[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

func decodeInto(src map[string]any, dst any) bool {
	b, err := json.Marshal(src)
	if err != nil {
		return false
	}
	return json.Unmarshal(b, dst) == nil
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "null object"
	case []any:
		return "array"
	case string:
		return "string"
	case float64, json.Number:
		return "number"
	case bool:
		return "boolean"
	}
	return fmt.Sprintf("%T", v)
}
