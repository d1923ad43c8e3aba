package contacts

import (
	"errors"
	"reflect"
	"testing"
)

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		name string
		line string
		want rune
	}{
		{"commas only", "nome,telefone,email", ','},
		{"semicolons only", "nome;telefone;email", ';'},
		{"tabs only", "nome\ttelefone\temail", '\t'},
		{"more semicolons than commas", "a;b;c,d", ';'},
		{"more commas than semicolons", "a,b,c;d", ','},
		{"tie favors comma", "a,b;c", ','},
		{"semicolon tab tie favors comma", "a;b\tc", ','},
		{"no delimiter at all", "telefone", ','},
		{"empty line", "", ','},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectDelimiter(tt.line); got != tt.want {
				t.Errorf("DetectDelimiter(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		delim rune
		want  []string
	}{
		{"simple", "Nome,Telefone\nAna,123", ',', []string{"Nome", "Telefone"}},
		{"semicolon", "Nome;Telefone", ';', []string{"Nome", "Telefone"}},
		{"crlf and blank lines", "\r\n\nNome,Telefone\r\nAna,123\r\n", ',', []string{"Nome", "Telefone"}},
		{"bom stripped", "\ufeffNome,Telefone", ',', []string{"Nome", "Telefone"}},
		{"quoted and padded fields", `"Nome" ,  "Telefone"`, ',', []string{"Nome", "Telefone"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHeaders(tt.text, tt.delim)
			if err != nil {
				t.Fatalf("ParseHeaders() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseHeaders() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseHeaders_EmptyInput(t *testing.T) {
	for _, text := range []string{"", "\n\n\r\n", "   \n\t\n"} {
		if _, err := ParseHeaders(text, ','); !errors.Is(err, ErrEmptyInput) {
			t.Errorf("ParseHeaders(%q) error = %v, want ErrEmptyInput", text, err)
		}
	}
}

func TestGuessColumn(t *testing.T) {
	tests := []struct {
		name       string
		headers    []string
		candidates []string
		want       int
	}{
		{"exact phone match any case", []string{"Nome", "Telefone"}, PhoneColumnLabels, 1},
		{"exact name match any case", []string{"NOME", "Telefone"}, NameColumnLabels, 0},
		{"substring containment", []string{"ID", "Telefone Celular"}, PhoneColumnLabels, 1},
		{"whatsapp header", []string{"ID", "WhatsApp"}, PhoneColumnLabels, 1},
		{"first match wins", []string{"Telefone", "Celular"}, PhoneColumnLabels, 0},
		{"padded header", []string{"  nome  "}, NameColumnLabels, 0},
		{"not found", []string{"ID", "Email"}, PhoneColumnLabels, -1},
		{"empty headers", nil, NameColumnLabels, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GuessColumn(tt.headers, tt.candidates); got != tt.want {
				t.Errorf("GuessColumn(%v) = %d, want %d", tt.headers, got, tt.want)
			}
		})
	}
}

func TestMapContacts(t *testing.T) {
	text := "Nome,Telefone\nAna,11999998888\nBia,999998888\nCai,5511999998888"
	headers := []string{"Nome", "Telefone"}

	batch, err := MapContacts(text, ',', headers, "Nome", "Telefone", "55")
	if err != nil {
		t.Fatalf("MapContacts() error = %v", err)
	}

	want := []ContactImport{
		// 11 digits, prefixed to 13: valid
		{Name: "Ana", PhoneNumber: "5511999998888", IsValid: true},
		// 9 digits, prefixed to 11: below the 12-digit threshold
		{Name: "Bia", PhoneNumber: "55999998888", IsValid: false},
		// already prefixed, untouched
		{Name: "Cai", PhoneNumber: "5511999998888", IsValid: true},
	}
	if !reflect.DeepEqual(batch.Contacts, want) {
		t.Errorf("MapContacts() = %+v, want %+v", batch.Contacts, want)
	}
	if batch.SkippedShort != 0 {
		t.Errorf("SkippedShort = %d, want 0", batch.SkippedShort)
	}
}

func TestMapContacts_ValidityBoundary(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		want  string
		valid bool
	}{
		{"11 digits after prefix is invalid", "999998888", "55999998888", false},
		{"12 digits after prefix is valid", "9999988881", "559999988881", true},
		{"separators are stripped", "(11) 99999-8888", "5511999998888", true},
		{"13 digits keeps its own prefix", "5511999998888", "5511999998888", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, err := MapContacts("Nome,Telefone\nX,"+tt.phone, ',', []string{"Nome", "Telefone"}, "Nome", "Telefone", "55")
			if err != nil {
				t.Fatalf("MapContacts() error = %v", err)
			}
			if len(batch.Contacts) != 1 {
				t.Fatalf("got %d contacts, want 1", len(batch.Contacts))
			}
			c := batch.Contacts[0]
			if c.PhoneNumber != tt.want || c.IsValid != tt.valid {
				t.Errorf("got {%q valid=%v}, want {%q valid=%v}", c.PhoneNumber, c.IsValid, tt.want, tt.valid)
			}
		})
	}
}

func TestMapContacts_ShortRowSkipped(t *testing.T) {
	text := "Nome,Email,Telefone\nAna,ana@x.com,11999998888\nBia\nCai,cai@x.com,11999997777"
	headers := []string{"Nome", "Email", "Telefone"}

	batch, err := MapContacts(text, ',', headers, "Nome", "Telefone", "55")
	if err != nil {
		t.Fatalf("MapContacts() error = %v", err)
	}
	if len(batch.Contacts) != 2 {
		t.Fatalf("got %d contacts, want 2 (short row dropped)", len(batch.Contacts))
	}
	if batch.Contacts[0].Name != "Ana" || batch.Contacts[1].Name != "Cai" {
		t.Errorf("unexpected names: %q, %q", batch.Contacts[0].Name, batch.Contacts[1].Name)
	}
	if batch.SkippedShort != 1 {
		t.Errorf("SkippedShort = %d, want 1", batch.SkippedShort)
	}
}

func TestMapContacts_ColumnNotFound(t *testing.T) {
	headers := []string{"Nome", "Telefone"}

	_, err := MapContacts("Nome,Telefone\nAna,123", ',', headers, "Cliente", "Telefone", "55")
	var cnf *ColumnNotFoundError
	if !errors.As(err, &cnf) {
		t.Fatalf("error = %v, want *ColumnNotFoundError", err)
	}
	if cnf.Column != "Cliente" {
		t.Errorf("Column = %q, want %q", cnf.Column, "Cliente")
	}

	// Column match is exact, not case-insensitive.
	if _, err := MapContacts("Nome,Telefone\nAna,123", ',', headers, "nome", "Telefone", "55"); err == nil {
		t.Error("expected error for case-mismatched column name")
	}
}

func TestMapContacts_Idempotent(t *testing.T) {
	text := "Nome;Telefone\nAna;11999998888\nBia;55 11 98888-7777\n\nCai;123"
	headers := []string{"Nome", "Telefone"}

	first, err := MapContacts(text, ';', headers, "Nome", "Telefone", "55")
	if err != nil {
		t.Fatalf("MapContacts() error = %v", err)
	}
	second, err := MapContacts(text, ';', headers, "Nome", "Telefone", "55")
	if err != nil {
		t.Fatalf("MapContacts() rerun error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("rerun produced a different batch:\n%+v\n%+v", first, second)
	}
}

func TestBatchValid(t *testing.T) {
	batch := Batch{Contacts: []ContactImport{
		{Name: "a", PhoneNumber: "551199999999", IsValid: true},
		{Name: "b", PhoneNumber: "55123", IsValid: false},
		{Name: "c", PhoneNumber: "551188888888", IsValid: true},
	}}

	valid := batch.Valid()
	if len(valid) != 2 {
		t.Fatalf("Valid() returned %d records, want 2", len(valid))
	}
	if valid[0].Name != "a" || valid[1].Name != "c" {
		t.Errorf("Valid() order = %q, %q; want a, c", valid[0].Name, valid[1].Name)
	}
	if batch.ValidCount() != 2 || batch.InvalidCount() != 1 {
		t.Errorf("counts = %d valid / %d invalid, want 2/1", batch.ValidCount(), batch.InvalidCount())
	}
}
