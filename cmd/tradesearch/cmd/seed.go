package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mercavo/tradesearch/internal/catalog"
	tserr "github.com/mercavo/tradesearch/internal/errors"
)

// seedFile is the YAML shape accepted by the seed command.
type seedFile struct {
	Products  []seedProduct  `yaml:"products"`
	Suppliers []seedSupplier `yaml:"suppliers"`
}

type seedProduct struct {
	ID          string            `yaml:"id"`
	Title       string            `yaml:"title"`
	Description string            `yaml:"description"`
	Specs       map[string]string `yaml:"specs"`
	Tags        []string          `yaml:"tags"`
	CategoryID  string            `yaml:"category_id"`
	SupplierID  string            `yaml:"supplier_id"`

	SupplierVerificationStatus string   `yaml:"supplier_verification_status"`
	SupplierBadges             []string `yaml:"supplier_badges"`
	SupplierServiceRating      *float64 `yaml:"supplier_service_rating"`
	SupplierResponseRate       *float64 `yaml:"supplier_response_rate"`
}

type seedSupplier struct {
	ID           string   `yaml:"id"`
	CompanyName  string   `yaml:"company_name"`
	Description  string   `yaml:"description"`
	MainProducts []string `yaml:"main_products"`
	Capabilities []string `yaml:"capabilities"`
	Country      string   `yaml:"country"`

	VerificationStatus string   `yaml:"verification_status"`
	Badges             []string `yaml:"badges"`
	ServiceRating      *float64 `yaml:"service_rating"`
	ResponseRate       *float64 `yaml:"response_rate"`
}

func newSeedCmd() *cobra.Command {
	var skipReindex bool

	cmd := &cobra.Command{
		Use:   "seed <catalog.yaml>",
		Short: "Load catalog entities from a YAML file and index them",
		Long: `Upsert products and suppliers from a YAML file into the catalog,
then reindex so they become searchable. Pass --skip-reindex to load
the catalog only.

The file shape:

  products:
    - id: prod-123
      title: Stainless Hex Screws M6
      description: ...
      category_id: fasteners
      supplier_id: sup-42
      supplier_verification_status: gold_verified
      supplier_badges: [trade_assurance]
      supplier_service_rating: 4.8
  suppliers:
    - id: sup-42
      company_name: Shenzhen Fastener Works
      country: CN
      verification_status: gold_verified`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read seed file: %w", err)
			}
			var file seedFile
			if err := yaml.Unmarshal(data, &file); err != nil {
				return tserr.New(tserr.ErrCodeInvalidInput,
					fmt.Sprintf("parse %s: %v", args[0], err), err)
			}
			if len(file.Products) == 0 && len(file.Suppliers) == 0 {
				return tserr.InvalidInput("seed file contains no products or suppliers")
			}

			ctx := cmd.Context()
			for _, sp := range file.Suppliers {
				if err := rt.catalog.UpsertSupplier(ctx, &catalog.Supplier{
					ID:                 sp.ID,
					CompanyName:        sp.CompanyName,
					Description:        sp.Description,
					MainProducts:       sp.MainProducts,
					Capabilities:       sp.Capabilities,
					Country:            sp.Country,
					VerificationStatus: sp.VerificationStatus,
					Badges:             sp.Badges,
					ServiceRating:      sp.ServiceRating,
					ResponseRate:       sp.ResponseRate,
				}); err != nil {
					return fmt.Errorf("upsert supplier %s: %w", sp.ID, err)
				}
			}
			for _, p := range file.Products {
				if err := rt.catalog.UpsertProduct(ctx, &catalog.Product{
					ID:                         p.ID,
					Title:                      p.Title,
					Description:                p.Description,
					Specs:                      p.Specs,
					Tags:                       p.Tags,
					CategoryID:                 p.CategoryID,
					SupplierID:                 p.SupplierID,
					SupplierVerificationStatus: p.SupplierVerificationStatus,
					SupplierBadges:             p.SupplierBadges,
					SupplierServiceRating:      p.SupplierServiceRating,
					SupplierResponseRate:       p.SupplierResponseRate,
				}); err != nil {
					return fmt.Errorf("upsert product %s: %w", p.ID, err)
				}
			}
			rt.out.Printf("loaded %d products, %d suppliers\n",
				len(file.Products), len(file.Suppliers))

			if skipReindex {
				return nil
			}
			report, err := rt.reindex.Run(ctx)
			if err != nil {
				return err
			}
			rt.out.Printf("indexed %d entities\n", report.Total())
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipReindex, "skip-reindex", false, "Load the catalog without rebuilding the indexes")

	return cmd
}
