package core

import "testing"

func TestValidateMetadataAcceptsSimple(t *testing.T) {
	meta := map[string]any{
		"source": "ADR-003",
		"count":  3,
		"nested": map[string]any{"ok": true},
	}
	cp, err := ValidateMetadata(meta)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cp["source"] = "mutated"
	if meta["source"] != "ADR-003" {
		t.Fatalf("original metadata was mutated through the returned copy")
	}
}

func TestValidateMetadataRejectsDeepNesting(t *testing.T) {
	var meta map[string]any = map[string]any{"a": map[string]any{"b": map[string]any{"c": map[string]any{"d": map[string]any{"e": map[string]any{"f": 1}}}}}}
	if _, err := ValidateMetadata(meta); err == nil {
		t.Fatal("expected depth violation to fail")
	} else if CodeOf(err) != CodeInvalidProvenance {
		t.Fatalf("expected CodeInvalidProvenance, got %v", CodeOf(err))
	}
}

func TestValidateMetadataRejectsTooManyTopKeys(t *testing.T) {
	meta := make(map[string]any, MaxMetadataTopKeys+1)
	for i := 0; i < MaxMetadataTopKeys+1; i++ {
		meta[string(rune('a'+i%26))+string(rune(i))] = i
	}
	if _, err := ValidateMetadata(meta); err == nil {
		t.Fatal("expected top-key violation to fail")
	}
}

func TestValidateMetadataRejectsOversizeString(t *testing.T) {
	big := make([]byte, MaxMetadataStringBytes+1)
	meta := map[string]any{"v": string(big)}
	if _, err := ValidateMetadata(meta); err == nil {
		t.Fatal("expected oversize string to fail")
	}
}

func TestValidateMetadataRejectsCycle(t *testing.T) {
	meta := map[string]any{}
	meta["self"] = meta
	if _, err := ValidateMetadata(meta); err == nil {
		t.Fatal("expected cyclic reference to fail")
	}
}

func TestValidateMetadataRejectsUnsupportedType(t *testing.T) {
	meta := map[string]any{"bytes": []byte("not allowed")}
	if _, err := ValidateMetadata(meta); err == nil {
		t.Fatal("expected byte-slice value to be rejected")
	}
}

func TestValidateMetadataNilIsNoop(t *testing.T) {
	cp, err := ValidateMetadata(nil)
	if err != nil || cp != nil {
		t.Fatalf("expected nil,nil got %v,%v", cp, err)
	}
}
