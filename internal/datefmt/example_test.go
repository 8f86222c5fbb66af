package datefmt_test

import (
	"fmt"

	"github.com/baxromumarov/immo-encheres/internal/datefmt"
)

func ExampleFormatDetail() {
	fmt.Println(datefmt.FormatDetail("Visite le 13 septembre 2025 à 14h30"))
	fmt.Println(datefmt.FormatDetail("13-09-2025"))
	// Output:
	// 13 septembre 2025 à 14:30
	// 13/09/2025
}

func ExampleFormatHome() {
	fmt.Println(datefmt.FormatHome("13/09/2025 de 10h à 12h"))
	fmt.Println(datefmt.FormatHome("sur rendez-vous"))
	// Output:
	// samedi 13 septembre 2025 à 10:00
	// sur rendez-vous
}
