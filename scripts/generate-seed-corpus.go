//go:build ignore

// Package main generates a synthetic catalog seed file for load testing.
// Usage: go run scripts/generate-seed-corpus.go -products 5000 -suppliers 500 -output seed.yaml
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strings"
)

var (
	products  = flag.Int("products", 1000, "number of products to generate")
	suppliers = flag.Int("suppliers", 100, "number of suppliers to generate")
	output    = flag.String("output", "seed.yaml", "output file path")
	seed      = flag.Int64("seed", 42, "random seed for reproducible corpora")
)

var categories = []string{
	"fasteners", "building", "electronics", "textiles", "machinery",
	"packaging", "chemicals", "automotive", "lighting", "tools",
}

var countries = []string{"CN", "IN", "VN", "TR", "DE", "US", "MX", "TH"}

var nouns = []string{
	"screw", "bolt", "tile", "cable", "fabric", "bearing", "pump", "valve",
	"panel", "connector", "gasket", "motor", "sensor", "bracket", "hinge",
}

var adjectives = []string{
	"stainless", "galvanized", "industrial", "heavy-duty", "precision",
	"waterproof", "insulated", "reinforced", "anodized", "food-grade",
}

var verifications = []string{"unverified", "verified", "verified", "gold_verified"}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	var b strings.Builder
	b.WriteString("suppliers:\n")
	for i := 0; i < *suppliers; i++ {
		country := countries[rng.Intn(len(countries))]
		verification := verifications[rng.Intn(len(verifications))]
		fmt.Fprintf(&b, "  - id: sup-%d\n", i)
		fmt.Fprintf(&b, "    company_name: %s %s Works %d\n",
			title(adjectives[rng.Intn(len(adjectives))]),
			title(nouns[rng.Intn(len(nouns))]), i)
		fmt.Fprintf(&b, "    description: Manufacturer and exporter of %s %ss.\n",
			adjectives[rng.Intn(len(adjectives))], nouns[rng.Intn(len(nouns))])
		fmt.Fprintf(&b, "    country: %s\n", country)
		fmt.Fprintf(&b, "    verification_status: %s\n", verification)
		if verification != "unverified" {
			fmt.Fprintf(&b, "    service_rating: %.1f\n", 3.0+rng.Float64()*2.0)
			fmt.Fprintf(&b, "    response_rate: %.0f\n", 60.0+rng.Float64()*40.0)
		}
		if rng.Intn(3) == 0 {
			b.WriteString("    badges: [trade_assurance]\n")
		}
	}

	b.WriteString("products:\n")
	for i := 0; i < *products; i++ {
		adj := adjectives[rng.Intn(len(adjectives))]
		noun := nouns[rng.Intn(len(nouns))]
		supplier := rng.Intn(*suppliers)
		fmt.Fprintf(&b, "  - id: prod-%d\n", i)
		fmt.Fprintf(&b, "    title: %s %s model %d\n", title(adj), title(noun), i)
		fmt.Fprintf(&b, "    description: %s %s for industrial use, bulk quantities available.\n", adj, noun)
		fmt.Fprintf(&b, "    category_id: %s\n", categories[rng.Intn(len(categories))])
		fmt.Fprintf(&b, "    supplier_id: sup-%d\n", supplier)
		fmt.Fprintf(&b, "    tags: [%s, %s]\n", adj, noun)
	}

	if err := os.WriteFile(*output, []byte(b.String()), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", *output, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %d suppliers and %d products to %s\n", *suppliers, *products, *output)
}
