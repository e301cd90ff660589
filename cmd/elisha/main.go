package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/elishasistemas/elisha-sub002/internal/app"
	"github.com/elishasistemas/elisha-sub002/internal/config"
	"github.com/elishasistemas/elisha-sub002/internal/db"
	"github.com/elishasistemas/elisha-sub002/internal/domain"
	"github.com/elishasistemas/elisha-sub002/internal/engine"
	"github.com/elishasistemas/elisha-sub002/internal/migrate"
	"github.com/elishasistemas/elisha-sub002/internal/repo"
	"github.com/elishasistemas/elisha-sub002/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "elisha",
	Short: "Elisha CLI",
	Long: `Elisha manages maintenance service orders with checklist snapshots and
compliance scoring.
Core concepts:
- Workspace: your .elisha directory holding the local database; elisha.yml
  carries the company identity and the seedable template catalog.
- Template: a versioned checklist definition (itens with tipo, obrigatorio,
  critico, photo minimums). Templates stay editable; running work does not
  see edits.
- OS (ordem de servico): a service order. Statuses flow
  novo -> em_andamento -> (parado | aguardando_assinatura) -> concluido,
  with cancelado as an exit.
- Checklist snapshot: starting a checklist freezes the template into the OS
  and seeds one pendente response per item.
- Score: weighted compliance percentage recomputed from responses on every
  read; critical or photo-required items can block conclusion.
- Event log: diary of changes, view with 'elisha log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initViper)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initViper() {
	viper.SetEnvPrefix("ELISHA")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("empresa", "", "empresa id (overrides config)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("empresa", rootCmd.PersistentFlags().Lookup("empresa"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(templateCmd())
	rootCmd.AddCommand(orderCmd())
	rootCmd.AddCommand(checklistCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(metricsCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var empresaID string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter elisha.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(empresaID)), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&empresaID, "empresa-id", "empresa-local", "empresa id for the generated config")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "Config is elisha.yml: empresa identity, default tipo_servico, and the template catalog used by 'elisha seed'.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate elisha.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err == nil {
				err = cfg.Validate()
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func templateCmd() *cobra.Command {
	tpl := &cobra.Command{
		Use:   "template",
		Short: "Manage checklist templates",
		Long:  "Templates define checklist items. Editing a template bumps its version; snapshots already taken by running orders are never touched.",
	}
	tpl.AddCommand(templateImportCmd())
	tpl.AddCommand(templateListCmd())
	tpl.AddCommand(templateShowCmd())
	tpl.AddCommand(templateUpdateCmd())
	return tpl
}

// templateFile is the YAML shape accepted by 'template import'. It reuses the
// catalog item format from elisha.yml.
type templateFile struct {
	ID          string               `yaml:"id"`
	Nome        string               `yaml:"nome"`
	TipoServico string               `yaml:"tipo_servico"`
	Origem      string               `yaml:"origem"`
	Itens       []config.CatalogItem `yaml:"itens"`
}

func templateImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a template from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}
			var tf templateFile
			if err := yaml.Unmarshal(data, &tf); err != nil {
				return fmt.Errorf("invalid template yaml: %w", err)
			}
			catalog := config.CatalogTemplate{Nome: tf.Nome, TipoServico: tf.TipoServico, Origem: tf.Origem, Itens: tf.Itens}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.ImportTemplate(ctx, engine.TemplateImportOptions{
					ID:          tf.ID,
					Nome:        tf.Nome,
					TipoServico: tf.TipoServico,
					Itens:       catalog.Items(),
					Origem:      tf.Origem,
					ActorID:     viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML template definition")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func templateListCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListTemplates(ctx, e.Config.Empresa.ID, !all)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Nome", "Tipo", "Versao", "Itens", "Ativo"})
				for _, t := range items {
					tw.AppendRow(table.Row{t.ID, t.Nome, t.TipoServico, t.Versao, len(t.Itens), t.Ativo})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include inactive templates")
	return cmd
}

func templateShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.Repo.GetTemplate(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func templateUpdateCmd() *cobra.Command {
	var nome, filePath string
	var activate, deactivate bool
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a template (item changes bump the version)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if activate && deactivate {
				return fmt.Errorf("--activate and --deactivate are mutually exclusive")
			}
			opts := engine.TemplateUpdateOptions{ID: args[0], ActorID: viper.GetString("actor-id")}
			if cmd.Flags().Changed("nome") {
				opts.Nome = &nome
			}
			if activate {
				v := true
				opts.Ativo = &v
			}
			if deactivate {
				v := false
				opts.Ativo = &v
			}
			if filePath != "" {
				data, err := os.ReadFile(filePath)
				if err != nil {
					return err
				}
				var tf templateFile
				if err := yaml.Unmarshal(data, &tf); err != nil {
					return fmt.Errorf("invalid template yaml: %w", err)
				}
				itens := config.CatalogTemplate{Itens: tf.Itens}.Items()
				opts.Itens = &itens
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.UpdateTemplate(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&nome, "nome", "", "new template name")
	cmd.Flags().StringVar(&filePath, "itens-file", "", "YAML file with replacement itens")
	cmd.Flags().BoolVar(&activate, "activate", false, "mark template active")
	cmd.Flags().BoolVar(&deactivate, "deactivate", false, "mark template inactive")
	return cmd
}

func orderCmd() *cobra.Command {
	ord := &cobra.Command{
		Use:   "order",
		Short: "Manage service orders",
		Long:  "Service orders (OS) are the unit of field work. Conclusion is gated on the checklist: critical items and photo evidence must be satisfied first.",
	}
	ord.AddCommand(orderCreateCmd())
	ord.AddCommand(orderListCmd())
	ord.AddCommand(orderShowCmd())
	ord.AddCommand(orderStatusCmd())
	ord.AddCommand(orderConcludeCmd())
	return ord
}

func orderCreateCmd() *cobra.Command {
	var opts engine.OrderCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a service order",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.CreateOrder(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "order id (optional, UUID if omitted)")
	cmd.Flags().StringVar(&opts.Titulo, "titulo", "", "title")
	cmd.Flags().StringVar(&opts.Descricao, "descricao", "", "description")
	cmd.Flags().StringVar(&opts.TipoServico, "tipo-servico", "", "service type (defaults from config)")
	cmd.Flags().StringVar(&opts.Prioridade, "prioridade", "", "priority (alta, media, baixa)")
	cmd.Flags().StringVar(&opts.EquipamentoID, "equipamento-id", "", "equipment id")
	_ = cmd.MarkFlagRequired("titulo")
	return cmd
}

func orderListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List service orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				orders, err := e.Repo.ListOrders(ctx, e.Config.Empresa.ID, status)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(orders)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Titulo", "Tipo", "Status", "Prioridade"})
				for _, o := range orders {
					tw.AppendRow(table.Row{o.ID, o.Titulo, o.TipoServico, o.Status, o.Prioridade})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func orderShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a service order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.Repo.GetOrder(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	return cmd
}

func orderStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "set-status <id>",
		Short: "Update order status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.SetOrderStatus(ctx, id, status, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new status")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func orderConcludeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conclude <id>",
		Short: "Conclude an order (gated on its checklist)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.ConcludeOrder(ctx, id, viper.GetString("actor-id"))
				var blocked *engine.ChecklistBlockedError
				if errors.As(err, &blocked) && !viper.GetBool("json") {
					fmt.Println("cannot conclude:")
					for _, m := range blocked.Motivos {
						fmt.Printf("  - %s\n", m)
					}
					return fmt.Errorf("checklist has %d blocking item(s)", len(blocked.Motivos))
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	return cmd
}

func checklistCmd() *cobra.Command {
	chk := &cobra.Command{
		Use:   "checklist",
		Short: "Manage order checklists",
		Long:  "Starting a checklist freezes the template into the order and seeds pendente responses. Respond to items, then conclude the order once nothing blocks.",
	}
	chk.AddCommand(checklistStartCmd())
	chk.AddCommand(checklistShowCmd())
	chk.AddCommand(checklistRespondCmd())
	return chk
}

func checklistStartCmd() *cobra.Command {
	var templateID, responsavelID string
	cmd := &cobra.Command{
		Use:   "start <os-id>",
		Short: "Start (or fetch) the checklist for an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			osID := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.StartChecklist(ctx, engine.StartChecklistOptions{
					OSID:          osID,
					ChecklistID:   templateID,
					ResponsavelID: responsavelID,
					ActorID:       viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&templateID, "template", "", "template id (defaults to the active template for the order's tipo_servico)")
	cmd.Flags().StringVar(&responsavelID, "responsavel", "", "responsible technician id")
	return cmd
}

func checklistShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <os-id>",
		Short: "Show checklist responses, score, and completion gate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			osID := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				view, err := e.GetChecklist(ctx, osID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{
						"checklist":  view.Checklist,
						"respostas":  view.Respostas,
						"score":      view.Score,
						"validation": view.Validation,
					})
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Ordem", "Descricao", "Status", "Fotos"})
				for _, r := range view.Respostas {
					tw.AppendRow(table.Row{r.ItemOrdem, r.Descricao, r.StatusItem, len(r.FotosURLs)})
				}
				tw.Render()
				fmt.Printf("Score: %d%% (peso %d/%d)\n", view.Score.Score, view.Score.PesoConforme, view.Score.PesoTotal)
				if view.Validation.PodeConcluir {
					fmt.Println("Pode concluir: sim")
				} else {
					fmt.Println("Pode concluir: nao")
					for _, m := range view.Validation.MotivosBloqueio {
						fmt.Printf("  - %s\n", m)
					}
				}
				for _, a := range view.Validation.Avisos {
					fmt.Printf("  aviso: %s\n", a)
				}
				return nil
			})
		},
	}
	return cmd
}

func checklistRespondCmd() *cobra.Command {
	var status, valorText, observacoes, assinaturaURL string
	var valorBoolean bool
	var valorNumber float64
	var fotos []string
	cmd := &cobra.Command{
		Use:   "respond <resposta-id>",
		Short: "Record a response to a checklist item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.RespostaUpdateOptions{ID: args[0], ActorID: viper.GetString("actor-id")}
			if cmd.Flags().Changed("status") {
				opts.StatusItem = &status
			}
			if cmd.Flags().Changed("valor-boolean") {
				opts.ValorBoolean = &valorBoolean
			}
			if cmd.Flags().Changed("valor-text") {
				opts.ValorText = &valorText
			}
			if cmd.Flags().Changed("valor-number") {
				opts.ValorNumber = &valorNumber
			}
			if cmd.Flags().Changed("observacoes") {
				opts.Observacoes = &observacoes
			}
			if cmd.Flags().Changed("foto") {
				opts.FotosURLs = &fotos
			}
			if cmd.Flags().Changed("assinatura-url") {
				opts.AssinaturaURL = &assinaturaURL
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				r, err := e.UpdateResposta(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(r)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status_item (pendente, conforme, nao_conforme, na)")
	cmd.Flags().BoolVar(&valorBoolean, "valor-boolean", false, "boolean value")
	cmd.Flags().StringVar(&valorText, "valor-text", "", "text value")
	cmd.Flags().Float64Var(&valorNumber, "valor-number", 0, "numeric value")
	cmd.Flags().StringVar(&observacoes, "observacoes", "", "notes")
	cmd.Flags().StringArrayVar(&fotos, "foto", []string{}, "photo URL (repeatable, replaces the list)")
	cmd.Flags().StringVar(&assinaturaURL, "assinatura-url", "", "signature URL")
	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed templates from the elisha.yml catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				n, err := e.SeedCatalog(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"seeded": n})
				}
				fmt.Printf("Seeded %d template(s)\n", n)
				return nil
			})
		},
	}
	return cmd
}

func metricsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show the operational metrics snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.Metrics(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(m)
				}
				fmt.Printf("Generated at: %s\n", m.GeneratedAt)
				fmt.Println("Ordens por status:")
				for status, c := range m.OrdensPorStatus {
					fmt.Printf("  %s: %d\n", status, c)
				}
				fmt.Printf("Criadas (7d): %d\n", m.OrdensCriadas7d)
				fmt.Printf("Concluidas (7d): %d\n", m.OrdensConcluidas7d)
				fmt.Printf("Templates ativos: %d\n", m.TemplatesAtivos)
				return nil
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: orders, checklists, responses, and template changes.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.ListEvents(ctx, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"TS", "Type", "Entity", "Actor"})
				for _, ev := range events {
					tw.AppendRow(table.Row{ev.TS, ev.Type, ev.EntityKind + "/" + ev.EntityID, ev.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	return cmd
}

func apikeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys for the HTTP server",
	}
	cmd.AddCommand(apikeyCreateCmd())
	cmd.AddCommand(apikeyListCmd())
	cmd.AddCommand(apikeyDeleteCmd())
	return cmd
}

func apikeyCreateCmd() *cobra.Command {
	var actorID, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (the plain key is printed once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actorID == "" {
				actorID = viper.GetString("actor-id")
			}
			raw := make([]byte, 32)
			if _, err := rand.Read(raw); err != nil {
				return err
			}
			plain := "ek_" + hex.EncodeToString(raw)
			key := domain.APIKey{
				ID:        uuid.NewString(),
				ActorID:   actorID,
				Name:      name,
				KeyHash:   repo.HashAPIKey(plain),
				CreatedAt: time.Now().UTC().Format(time.RFC3339),
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := r.InsertAPIKey(ctx, nil, key); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"id": key.ID, "actor_id": key.ActorID, "key": plain})
				}
				fmt.Printf("API key %s for actor %s\n", key.ID, key.ActorID)
				fmt.Printf("Key (store it now, it is not shown again): %s\n", plain)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "actor the key authenticates as (defaults to --actor-id)")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var actorID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				keys, err := r.ListAPIKeys(ctx, actorID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Actor", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "filter by actor id")
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, id)
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowLegacyActor bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			cfg, err := app.ResolveConfig(cmd.Context(), workspace, viper.GetString("empresa"), r)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{
				JWTSecret:              os.Getenv("ELISHA_JWT_SECRET"),
				AllowLegacyActorHeader: allowLegacyActor,
			}
			if authCfg.JWTSecret == "" && !allowLegacyActor {
				return fmt.Errorf("ELISHA_JWT_SECRET is required for bearer auth (or pass --allow-legacy-actor for local use)")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Elisha API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&allowLegacyActor, "allow-legacy-actor", false, "accept X-Actor-Id without auth (local use only)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	cfg, err := app.ResolveConfig(ctx, workspace, viper.GetString("empresa"), r)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
