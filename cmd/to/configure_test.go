package main

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestSetToken(t *testing.T) {
	doc := map[string]any{
		"store": map[string]any{"base_url": "http://s", "account": "a"},
	}

	setToken(doc, "store", "tok-store")
	setToken(doc, "gateway", "tok-gw")

	store, _ := doc["store"].(map[string]any)
	if store["token"] != "tok-store" {
		t.Errorf("store token = %v", store["token"])
	}
	if store["base_url"] != "http://s" {
		t.Error("existing store keys should survive")
	}

	// Missing section is created on demand.
	gw, ok := doc["gateway"].(map[string]any)
	if !ok || gw["token"] != "tok-gw" {
		t.Errorf("gateway section = %v", doc["gateway"])
	}
}

func TestSetToken_RoundTripsThroughYAML(t *testing.T) {
	var doc map[string]any
	if err := yaml.Unmarshal([]byte("store:\n  base_url: http://s\n"), &doc); err != nil {
		t.Fatal(err)
	}

	// yaml.v3 decodes nested maps as map[string]any, which setToken relies on.
	setToken(doc, "store", "tok")
	out, err := yaml.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}

	var back struct {
		Store struct {
			BaseURL string `yaml:"base_url"`
			Token   string `yaml:"token"`
		} `yaml:"store"`
	}
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatal(err)
	}
	if back.Store.Token != "tok" || back.Store.BaseURL != "http://s" {
		t.Errorf("round trip = %+v", back.Store)
	}
}
