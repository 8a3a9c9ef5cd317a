package agent

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Type represents a specific type of an agent Config.
// Config's with this type can create Agents of the corresponding type.
type Type string

// Config represents a configuration for creating an agent
type Config interface {
	// Type returns the type of agent that the Config describes
	Type() Type

	// Validate returns an error describing whether or not the
	// configuration is valid or not.
	Validate() error
}

// Registered types with the package. Once a Type has been registered
// with this map, a TypedConfig with that type can be deserialized.
//
// Each separate package is in charge of registering its Type with
// the package separately to avoid circular imports.
var registeredTypes = make(map[Type]reflect.Type)

// Register registers an agent's Type with a concrete Config type
// so that upon deserialization of a TypedConfig, Configs of
// type agentType are deserialized into the concrete type of config.
func Register(agentType Type, config Config) {
	registeredTypes[agentType] = reflect.TypeOf(config)
}

// TypedConfig explicitly stores the Type of a Config so that it can be
// deserialized into its concrete type without declaring a variable of
// that type beforehand.
type TypedConfig struct {
	Type
	Config
}

// NewTypedConfig types the argument Config
func NewTypedConfig(c Config) TypedConfig {
	return TypedConfig{Type: c.Type(), Config: c}
}

// UnmarshalJSON implements the json.Unmarshaller interface
func (t *TypedConfig) UnmarshalJSON(data []byte) error {
	m := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	var typeName Type
	if err := json.Unmarshal(m["Type"], &typeName); err != nil {
		return fmt.Errorf("unmarshalJSON: could not decode agent type: %v",
			err)
	}
	ty, found := registeredTypes[typeName]
	if !found {
		return fmt.Errorf("unmarshalJSON: agent type %v not registered",
			typeName)
	}

	value := reflect.New(ty)
	if err := json.Unmarshal(m["Config"], value.Interface()); err != nil {
		return fmt.Errorf("unmarshalJSON: could not decode %v config: %v",
			typeName, err)
	}

	t.Type = typeName
	t.Config = value.Elem().Interface().(Config)
	return t.Config.Validate()
}
