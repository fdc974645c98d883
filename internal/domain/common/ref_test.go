package common

import "testing"

func TestRef_Display(t *testing.T) {
	tests := []struct {
		ref  *Ref
		want string
	}{
		{nil, "-"},
		{&Ref{}, "-"},
		{&Ref{ID: 3}, "#3"},
		{&Ref{ID: 3, Code: "BN001"}, "BN001"},
		{&Ref{ID: 3, Name: "Nguyễn Văn A"}, "Nguyễn Văn A"},
		{&Ref{ID: 3, Code: "BN001", Name: "Nguyễn Văn A"}, "BN001 - Nguyễn Văn A"},
	}
	for _, tt := range tests {
		if got := tt.ref.Display(); got != tt.want {
			t.Errorf("Display(%+v) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}

func TestParseID(t *testing.T) {
	if id, err := ParseID(" 12 "); err != nil || id != 12 {
		t.Errorf("ParseID(12) = %d, %v", id, err)
	}
	if id, err := ParseID(""); err != nil || id != 0 {
		t.Errorf("ParseID('') = %d, %v", id, err)
	}
	if _, err := ParseID("tủ 1"); err == nil {
		t.Error("expected error for non-numeric input")
	}
	if _, err := ParseID("-4"); err == nil {
		t.Error("expected error for negative id")
	}
}
