// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package message initializes configuration structs from generic JSON values
// using struct tags.
package message

import (
	"encoding/json"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/stockparfait/errors"
)

// Message is a configuration struct initialized from a JSON object, typically
// implemented by a struct pointer:
//
//	type Chart struct {
//		X    string   `json:"x" required:"true"`
//		Y    []string `json:"y"`
//		Type string   `json:"type" default:"line" choices:"line,bars"`
//	}
//
//	func (c *Chart) InitMessage(js any) error {
//		return message.Init(c, js)
//	}
type Message interface {
	// InitMessage converts a generic JSON value read by encoding/json into the
	// specific message, checking required fields and choices and setting the
	// defaults.
	InitMessage(js any) error
}

// jsonName of the struct field, or "" if the field is not part of the message.
func jsonName(f reflect.StructField) string {
	if !f.IsExported() {
		return ""
	}
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

// convert a JSON value to the field type. Supported types are string, bool,
// int, float64 and []string.
func convert(jv any, t reflect.Type) (reflect.Value, error) {
	var Nil reflect.Value
	switch t.Kind() {
	case reflect.String:
		if s, ok := jv.(string); ok {
			return reflect.ValueOf(s).Convert(t), nil
		}
		return Nil, errors.Reason("not a string: %v", jv)
	case reflect.Bool:
		if b, ok := jv.(bool); ok {
			return reflect.ValueOf(b), nil
		}
		return Nil, errors.Reason("not a bool: %v", jv)
	case reflect.Int:
		if f, ok := jv.(float64); ok && f == float64(int(f)) {
			return reflect.ValueOf(int(f)), nil
		}
		return Nil, errors.Reason("not an integer: %v", jv)
	case reflect.Float64:
		if f, ok := jv.(float64); ok {
			return reflect.ValueOf(f), nil
		}
		return Nil, errors.Reason("not a number: %v", jv)
	case reflect.Slice:
		if t.Elem().Kind() != reflect.String {
			break
		}
		l, ok := jv.([]any)
		if !ok {
			return Nil, errors.Reason("not a list: %v", jv)
		}
		res := reflect.MakeSlice(t, len(l), len(l))
		for i, v := range l {
			s, ok := v.(string)
			if !ok {
				return Nil, errors.Reason("element %d is not a string: %v", i, v)
			}
			res.Index(i).SetString(s)
		}
		return res, nil
	}
	return Nil, errors.Reason("unsupported type: %s", t)
}

// parseDefault converts the value of a default tag to the field type.
func parseDefault(s string, t reflect.Type) (reflect.Value, error) {
	var Nil reflect.Value
	switch t.Kind() {
	case reflect.String:
		return reflect.ValueOf(s).Convert(t), nil
	case reflect.Bool:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return Nil, errors.Annotate(err, "invalid bool value: %s", s)
		}
		return reflect.ValueOf(v), nil
	case reflect.Int:
		v, err := strconv.Atoi(s)
		if err != nil {
			return Nil, errors.Annotate(err, "invalid int value: %s", s)
		}
		return reflect.ValueOf(v), nil
	case reflect.Float64:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Nil, errors.Annotate(err, "invalid float64 value: %s", s)
		}
		return reflect.ValueOf(v), nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.String {
			return reflect.ValueOf(strings.Split(s, ",")).Convert(t), nil
		}
	}
	return Nil, errors.Reason("default for type %s is not supported", t)
}

// Init is a generic implementation of Message.InitMessage. It expects m to be
// a struct pointer, and js to be a JSON object (map[string]any).
//
// Recognized struct tags:
// `json:"name" required:"true" default:"value" choices:"one,two,three"`
//
// Only exported fields are part of a message, and a missing json tag means the
// field name is used as is. Unknown keys in js are an error. The "choices" tag
// applies to string fields, and is checked against the default or zero value
// as well.
func Init(m Message, js any) error {
	rv := reflect.ValueOf(m)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return errors.Reason("expected a struct pointer, got %T", m)
	}
	jsMap, ok := js.(map[string]any)
	if !ok {
		return errors.Reason("JSON value is not an object: %v", js)
	}
	rv = rv.Elem()
	rt := rv.Type()
	known := make(map[string]struct{})
	var missing []string
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		name := jsonName(f)
		if name == "" {
			continue
		}
		known[name] = struct{}{}
		var v reflect.Value
		var err error
		jv, found := jsMap[name]
		switch {
		case found && jv != nil:
			v, err = convert(jv, f.Type)
		case f.Tag.Get("required") == "true":
			missing = append(missing, name)
			continue
		default:
			if d, ok := f.Tag.Lookup("default"); ok {
				v, err = parseDefault(d, f.Type)
			} else {
				v = reflect.Zero(f.Type)
			}
		}
		if err != nil {
			return errors.Annotate(err, "invalid value for %s", name)
		}
		if choices, ok := f.Tag.Lookup("choices"); ok && f.Type.Kind() == reflect.String {
			if !StringIn(v.String(), strings.Split(choices, ",")...) {
				return errors.Reason(
					"value for %s is not in its choice list: '%s'", name, v.String())
			}
		}
		rv.Field(i).Set(v)
	}
	if len(missing) > 0 {
		return errors.Reason("missing required fields: %s", strings.Join(missing, ", "))
	}
	var extra []string
	for k := range jsMap {
		if _, ok := known[k]; !ok {
			extra = append(extra, k)
		}
	}
	if len(extra) > 0 {
		return errors.Reason("unsupported fields for %s: %s",
			rt.Name(), strings.Join(extra, ", "))
	}
	return nil
}

// FromFile reads a JSON file and initializes the message from it.
func FromFile(m Message, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return errors.Annotate(err, "failed to read '%s'", path)
	}
	var js any
	if err := json.Unmarshal(b, &js); err != nil {
		return errors.Annotate(err, "failed to parse JSON in '%s'", path)
	}
	if err := m.InitMessage(js); err != nil {
		return errors.Annotate(err, "failed to init message from '%s'", path)
	}
	return nil
}

// StringIn checks that s equals one of the values.
func StringIn(s string, values ...string) bool {
	for _, v := range values {
		if s == v {
			return true
		}
	}
	return false
}
