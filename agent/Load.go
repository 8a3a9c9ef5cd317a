package agent

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig decodes a TypedConfig from YAML or JSON data. The Type of
// the config must have been registered with Register.
//
// JSON has no infinities, so YAML's .inf and -.inf are loaded as
// math.MaxFloat64 and -math.MaxFloat64. A gradient norm bound of .inf
// therefore still disables clipping. NaN values are rejected.
func LoadConfig(data []byte) (TypedConfig, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return TypedConfig{}, fmt.Errorf("loadConfig: %v", err)
	}

	// Configs decode themselves from JSON, so YAML documents are
	// re-encoded before decoding
	doc, err := jsonFloats(doc)
	if err != nil {
		return TypedConfig{}, fmt.Errorf("loadConfig: %v", err)
	}
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return TypedConfig{}, fmt.Errorf("loadConfig: could not convert "+
			"to json: %v", err)
	}

	var config TypedConfig
	if err := json.Unmarshal(jsonData, &config); err != nil {
		return TypedConfig{}, fmt.Errorf("loadConfig: %v", err)
	}
	return config, nil
}

// LoadConfigFile decodes a TypedConfig from a YAML or JSON file
func LoadConfigFile(filename string) (TypedConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return TypedConfig{}, fmt.Errorf("loadConfigFile: %v", err)
	}
	return LoadConfig(data)
}

// jsonFloats replaces infinite floats in a decoded YAML document with
// the largest finite float of the same sign
func jsonFloats(v interface{}) (interface{}, error) {
	switch v := v.(type) {
	case float64:
		switch {
		case math.IsNaN(v):
			return nil, fmt.Errorf("NaN cannot be used in a config")
		case math.IsInf(v, 1):
			return math.MaxFloat64, nil
		case math.IsInf(v, -1):
			return -math.MaxFloat64, nil
		}
		return v, nil

	case map[string]interface{}:
		for key, elem := range v {
			elem, err := jsonFloats(elem)
			if err != nil {
				return nil, fmt.Errorf("%v: %v", key, err)
			}
			v[key] = elem
		}
		return v, nil

	case []interface{}:
		for i, elem := range v {
			elem, err := jsonFloats(elem)
			if err != nil {
				return nil, fmt.Errorf("%v: %v", i, err)
			}
			v[i] = elem
		}
		return v, nil
	}
	return v, nil
}
