package flyer

import (
	"context"
	"fmt"
	"testing"
)

type fakeTranslator struct {
	result   string
	err      error
	echoes   bool
	attempts int
}

func (f *fakeTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	f.attempts++
	if f.err != nil {
		return "", f.err
	}
	if f.echoes {
		return text, nil
	}
	return f.result, nil
}

func TestNamer_BilingualLabelUsesSegmentAfterPipe(t *testing.T) {
	translator := &fakeTranslator{}
	namer := NewNamer(translator)

	name := namer.Normalize(context.Background(), "pommes gala | gala apples")

	if name != "Gala Apples" {
		t.Errorf("Expected 'Gala Apples', got '%s'", name)
	}
	if translator.attempts != 0 {
		t.Errorf("Bilingual labels must not hit the translator, got %d attempts", translator.attempts)
	}
}

func TestNamer_FrenchOnlyLabelIsTranslated(t *testing.T) {
	translator := &fakeTranslator{result: "whole wheat bread"}
	namer := NewNamer(translator)

	name := namer.Normalize(context.Background(), "pain de blé entier")

	if name != "Whole Wheat Bread" {
		t.Errorf("Expected 'Whole Wheat Bread', got '%s'", name)
	}
	if translator.attempts != 1 {
		t.Errorf("Expected one translation attempt, got %d", translator.attempts)
	}
}

func TestNamer_TranslationFailureDegradesToOriginal(t *testing.T) {
	translator := &fakeTranslator{err: fmt.Errorf("service down")}
	namer := NewNamer(translator)

	name := namer.Normalize(context.Background(), "fromage râpé")

	if name != "Fromage Râpé" {
		t.Errorf("Expected the original label title-cased, got '%s'", name)
	}
	if translator.attempts != translationAttempts {
		t.Errorf("Expected %d bounded attempts, got %d", translationAttempts, translator.attempts)
	}
}

func TestNamer_WhitespaceNormalized(t *testing.T) {
	namer := NewNamer(&fakeTranslator{echoes: true})

	name := namer.Normalize(context.Background(), "  gala \t apples\n ")

	if name != "Gala Apples" {
		t.Errorf("Expected 'Gala Apples', got '%s'", name)
	}
}

func TestNamer_NormalizeIsIdempotent(t *testing.T) {
	namer := NewNamer(&fakeTranslator{echoes: true})
	ctx := context.Background()

	once := namer.Normalize(ctx, "poulet entier | Whole Chicken")
	twice := namer.Normalize(ctx, once)

	if once != twice {
		t.Errorf("Normalization is not idempotent: %q != %q", once, twice)
	}
}
