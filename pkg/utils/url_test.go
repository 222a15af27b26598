package utils

import (
	"errors"
	"testing"
)

func TestHashURLStable(t *testing.T) {
	a := HashURL("https://shop.example/p/1")
	if a != HashURL("https://shop.example/p/1") {
		t.Fatal("hash should be deterministic")
	}
	if a == HashURL("https://shop.example/p/2") {
		t.Fatal("different urls should hash differently")
	}
	if len(a) != 64 {
		t.Fatalf("len = %d, want 64", len(a))
	}
}

func TestValidateProductURL(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"https://shop.example/p/1", false},
		{"http://shop.example", false},
		{"", true},
		{"   ", true},
		{"ftp://shop.example/p", true},
		{"shop.example/p/1", true},
		{"https://", true},
		{"://bad", true},
	}
	for _, tt := range tests {
		err := ValidateProductURL(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateProductURL(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidURL) {
			t.Errorf("ValidateProductURL(%q) should wrap ErrInvalidURL", tt.in)
		}
	}
}
