package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/atelierboard/atelierboard/internal/store"
	"github.com/atelierboard/atelierboard/pkg/logging"
	"github.com/atelierboard/atelierboard/pkg/models"
)

// seedCmd fills the database with demo data.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo data",
	Long: `Seed fills the database with demo data for local development,
either from a YAML fixture file or from a small built-in set.

Fixture format:

  workflow:
    - content: Commander bobines fil blanc
      type: ACHAT
  planning:
    - clientName: Maison Dupont
      quantity: 40
      designation: Polos brodés
      status: A_PRODUIRE
      priority: HAUTE
      responsible: loic
  notes:
    melina: Penser à relancer le fournisseur DTF
  orders:
    - orderNumber: CMD-1001
      customerName: Jeanne Martin
      paid: true
      total: 89.9`,
	Example: `  atelierboard seed
  atelierboard seed --file fixtures/demo.yaml --db board.db`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().String("db", "atelierboard.db", "SQLite database file")
	seedCmd.Flags().String("file", "", "YAML fixture file (built-in demo data when empty)")
}

// fixture is the YAML seed file layout.
type fixture struct {
	Workflow []struct {
		Content string              `yaml:"content"`
		Type    models.WorkflowType `yaml:"type"`
	} `yaml:"workflow"`
	Planning []struct {
		ClientName  string                `yaml:"clientName"`
		Quantity    int                   `yaml:"quantity"`
		Designation string                `yaml:"designation"`
		Note        string                `yaml:"note"`
		UnitPrice   float64               `yaml:"unitPrice"`
		Status      models.PlanningStatus `yaml:"status"`
		Priority    models.Priority       `yaml:"priority"`
		Responsible string                `yaml:"responsible"`
	} `yaml:"planning"`
	Notes  map[string]string `yaml:"notes"`
	Orders []struct {
		OrderNumber  string  `yaml:"orderNumber"`
		CustomerName string  `yaml:"customerName"`
		Paid         bool    `yaml:"paid"`
		Total        float64 `yaml:"total"`
	} `yaml:"orders"`
}

func runSeed(cmd *cobra.Command, _ []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	fixtureFile, _ := cmd.Flags().GetString("file")

	logger := logging.Default()

	var fx fixture
	if fixtureFile != "" {
		raw, err := os.ReadFile(fixtureFile)
		if err != nil {
			return fmt.Errorf("reading fixture: %w", err)
		}
		if err := yaml.Unmarshal(raw, &fx); err != nil {
			return fmt.Errorf("parsing fixture: %w", err)
		}
	} else {
		fx = builtinFixture()
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() { _ = st.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	for _, w := range fx.Workflow {
		if _, err := st.CreateWorkflowItem(ctx, w.Content, w.Type); err != nil {
			return fmt.Errorf("seeding workflow item %q: %w", w.Content, err)
		}
	}
	for _, p := range fx.Planning {
		_, err := st.CreatePlanningItem(ctx, store.PlanningDraft{
			ClientName:  p.ClientName,
			Quantity:    p.Quantity,
			Designation: p.Designation,
			Note:        p.Note,
			UnitPrice:   p.UnitPrice,
			Status:      p.Status,
			Priority:    p.Priority,
			Responsible: p.Responsible,
		})
		if err != nil {
			return fmt.Errorf("seeding planning item for %q: %w", p.ClientName, err)
		}
	}
	for person, content := range fx.Notes {
		content := content
		if _, err := st.UpdateNote(ctx, person, store.NotePatch{Content: &content}); err != nil {
			return fmt.Errorf("seeding note for %q: %w", person, err)
		}
	}
	for _, o := range fx.Orders {
		payment := models.PaymentPending
		if o.Paid {
			payment = models.PaymentPaid
		}
		_, err := st.CreateOrder(ctx, models.Order{
			OrderNumber:   o.OrderNumber,
			CustomerName:  o.CustomerName,
			PaymentStatus: payment,
			Total:         o.Total,
		})
		if err != nil {
			return fmt.Errorf("seeding order %q: %w", o.OrderNumber, err)
		}
	}

	logger.Info().
		Int("workflow", len(fx.Workflow)).
		Int("planning", len(fx.Planning)).
		Int("notes", len(fx.Notes)).
		Int("orders", len(fx.Orders)).
		Str("db", dbPath).
		Msg("Database seeded")
	return nil
}

// builtinFixture is a small French-flavored demo set matching how the
// shop actually uses the board.
func builtinFixture() fixture {
	var fx fixture
	fx.Workflow = []struct {
		Content string              `yaml:"content"`
		Type    models.WorkflowType `yaml:"type"`
	}{
		{Content: "Commander bobines fil blanc", Type: models.WorkflowAchat},
		{Content: "Commander film DTF 60cm", Type: models.WorkflowAchat},
		{Content: "Préparer presse transfert", Type: models.WorkflowAtelier},
		{Content: "Imprimer planches logos club", Type: models.WorkflowDTF},
		{Content: "Contrôle qualité lot 42", Type: models.WorkflowStandard},
	}
	fx.Planning = []struct {
		ClientName  string                `yaml:"clientName"`
		Quantity    int                   `yaml:"quantity"`
		Designation string                `yaml:"designation"`
		Note        string                `yaml:"note"`
		UnitPrice   float64               `yaml:"unitPrice"`
		Status      models.PlanningStatus `yaml:"status"`
		Priority    models.Priority       `yaml:"priority"`
		Responsible string                `yaml:"responsible"`
	}{
		{ClientName: "Maison Dupont", Quantity: 40, Designation: "Polos brodés", UnitPrice: 12.5, Status: models.StatusToProduce, Priority: models.PriorityHigh, Responsible: "loic"},
		{ClientName: "Club Sportif", Quantity: 100, Designation: "T-shirts sérigraphie", UnitPrice: 8, Status: models.StatusAwaitGoods, Priority: models.PriorityMedium, Responsible: "charlie"},
		{ClientName: "Atelier Vert", Quantity: 12, Designation: "Tabliers logo", UnitPrice: 15, Status: models.StatusToQuote, Priority: models.PriorityLow, Responsible: "melina"},
	}
	fx.Notes = map[string]string{
		"loic":   "Relancer le fournisseur de polos",
		"melina": "Penser à commander le film DTF",
	}
	fx.Orders = []struct {
		OrderNumber  string  `yaml:"orderNumber"`
		CustomerName string  `yaml:"customerName"`
		Paid         bool    `yaml:"paid"`
		Total        float64 `yaml:"total"`
	}{
		{OrderNumber: "CMD-1001", CustomerName: "Jeanne Martin", Paid: true, Total: 89.9},
		{OrderNumber: "CMD-1002", CustomerName: "Paul Aubry", Paid: false, Total: 45},
	}
	return fx
}
