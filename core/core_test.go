package core

import (
	"testing"

	"github.com/goccy/go-json"
)

func TestOperations_JSON_Unmarshalling(t *testing.T) {

	type Object struct {
		Operations []Operation `json:"operations"`
	}
	var object Object
	jsonRead := `{"operations":["create","read","update","list","delete"]}`
	err := json.Unmarshal([]byte(jsonRead), &object)
	if err != nil {
		t.Fatal(err)
	}
	if len(object.Operations) != 5 {
		t.Fatal("unexpected number of operations:", len(object.Operations))
	}

	jsonRead = `{"operations":["invalid"]}`
	err = json.Unmarshal([]byte(jsonRead), &object)
	if err == nil {
		t.Fatal("invalid operation accepted")
	}
}

func TestPluralSingular(t *testing.T) {
	tests := []struct {
		singular string
		plural   string
	}{
		{"house", "houses"},
		{"room", "rooms"},
		{"company", "companies"},
		{"child", "children"},
		{"address", "addresses"},
		{"key", "keys"},
	}
	for _, tt := range tests {
		t.Run(tt.singular, func(t *testing.T) {
			if got := Plural(tt.singular); got != tt.plural {
				t.Fatalf("Plural(%s) = %s, want %s", tt.singular, got, tt.plural)
			}
			if got := Singular(tt.plural); got != tt.singular {
				t.Fatalf("Singular(%s) = %s, want %s", tt.plural, got, tt.singular)
			}
		})
	}
	if IDName("house") != "houseId" {
		t.Fatal("unexpected id name")
	}
}
