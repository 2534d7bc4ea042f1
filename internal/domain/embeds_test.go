package domain

import "testing"

func TestFileStyle(t *testing.T) {
	seen := make(map[string]FileType)
	for _, ft := range FileTypes {
		icon, color := FileStyle(ft)
		if icon == "" || color == "" {
			t.Fatalf("%s: пустое оформление", ft)
		}
		if prev, dup := seen[color]; dup {
			t.Fatalf("%s и %s делят цвет %s", ft, prev, color)
		}
		seen[color] = ft
	}
	if icon, color := FileStyle(FileOther); icon != "📎" || color != "#9E9E9E" {
		t.Fatalf("неизвестный вид должен выглядеть как скрепка, получили %s %s", icon, color)
	}
	if icon, _ := FileStyle("zip"); icon != "📎" {
		t.Fatalf("ожидали скрепку для незнакомого вида, получили %s", icon)
	}
}
