package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/elishasistemas/elisha-sub002/internal/domain"
)

// Config models elisha.yml: the company identity and the checklist template
// catalog used for seeding a fresh workspace.
type Config struct {
	Empresa struct {
		ID   string `yaml:"id"`
		Nome string `yaml:"nome"`
	} `yaml:"empresa"`
	Defaults struct {
		TipoServico string `yaml:"tipo_servico"`
	} `yaml:"defaults"`
	Catalog []CatalogTemplate `yaml:"catalog"`
}

// CatalogTemplate is one seedable template definition.
type CatalogTemplate struct {
	Nome        string        `yaml:"nome"`
	TipoServico string        `yaml:"tipo_servico"`
	Origem      string        `yaml:"origem"`
	Itens       []CatalogItem `yaml:"itens"`
}

// CatalogItem mirrors domain.TemplateItem in YAML form.
type CatalogItem struct {
	Ordem       int    `yaml:"ordem"`
	Secao       string `yaml:"secao"`
	Descricao   string `yaml:"descricao"`
	Tipo        string `yaml:"tipo"`
	Obrigatorio bool   `yaml:"obrigatorio"`
	Critico     bool   `yaml:"critico"`
	FotosMin    int    `yaml:"fotos_min"`
}

var validTipos = map[string]bool{
	domain.TipoBoolean:   true,
	domain.TipoText:      true,
	domain.TipoNumber:    true,
	domain.TipoPhoto:     true,
	domain.TipoSignature: true,
	domain.TipoLeitura:   true,
}

var validTipoServico = map[string]bool{
	"preventiva":  true,
	"corretiva":   true,
	"emergencial": true,
	"chamado":     true,
	"todos":       true,
}

// Load reads and validates config from the workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run elisha init or pass --config", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Empresa.ID == "" {
		return fmt.Errorf("config.empresa.id is required")
	}
	if c.Empresa.Nome == "" {
		return fmt.Errorf("config.empresa.nome is required")
	}
	if c.Defaults.TipoServico != "" && !validTipoServico[c.Defaults.TipoServico] {
		return fmt.Errorf("config.defaults.tipo_servico %q is not a known service type", c.Defaults.TipoServico)
	}
	for i, tpl := range c.Catalog {
		if tpl.Nome == "" {
			return fmt.Errorf("catalog[%d]: nome is required", i)
		}
		if !validTipoServico[tpl.TipoServico] {
			return fmt.Errorf("catalog template %s: tipo_servico %q is not a known service type", tpl.Nome, tpl.TipoServico)
		}
		if len(tpl.Itens) == 0 {
			return fmt.Errorf("catalog template %s has no items", tpl.Nome)
		}
		seen := map[int]bool{}
		for j, item := range tpl.Itens {
			if item.Descricao == "" {
				return fmt.Errorf("catalog template %s item %d: descricao is required", tpl.Nome, j+1)
			}
			if !validTipos[item.Tipo] {
				return fmt.Errorf("catalog template %s item %q: unknown tipo %q", tpl.Nome, item.Descricao, item.Tipo)
			}
			if item.FotosMin < 0 {
				return fmt.Errorf("catalog template %s item %q: fotos_min must be >= 0", tpl.Nome, item.Descricao)
			}
			// Explicit ordem values must not collide with each other or with
			// another item's positional fallback, or the response join key
			// becomes ambiguous.
			ordem := item.Ordem
			if ordem == 0 {
				ordem = j + 1
			}
			if seen[ordem] {
				return fmt.Errorf("catalog template %s: duplicate item ordem %d", tpl.Nome, ordem)
			}
			seen[ordem] = true
		}
	}
	return nil
}

// Items converts a catalog template's items to domain form.
func (t CatalogTemplate) Items() []domain.TemplateItem {
	itens := make([]domain.TemplateItem, 0, len(t.Itens))
	for _, it := range t.Itens {
		item := domain.TemplateItem{
			Ordem:       it.Ordem,
			Secao:       it.Secao,
			Descricao:   it.Descricao,
			Tipo:        it.Tipo,
			Obrigatorio: it.Obrigatorio,
			Critico:     it.Critico,
		}
		if it.FotosMin > 0 {
			item.Evidencias = &domain.Evidencias{FotosMin: it.FotosMin}
		}
		itens = append(itens, item)
	}
	return itens
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "elisha.yml")
}

// GenerateDefault returns default config YAML for a company.
func GenerateDefault(empresaID string) string {
	return fmt.Sprintf(defaultTemplate, empresaID)
}

// Default returns the default Config struct for a company.
func Default(empresaID string) *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(fmt.Sprintf(defaultTemplate, empresaID)), &cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `empresa:
  id: %s
  nome: Manutencao Padrao

defaults:
  tipo_servico: preventiva

catalog:
  - nome: Preventiva Mensal - Elevador Eletrico
    tipo_servico: preventiva
    origem: abnt
    itens:
      - secao: Cabine
        descricao: Funcionamento das botoeiras de cabine
        tipo: boolean
        obrigatorio: true
        critico: false
      - secao: Cabine
        descricao: Iluminacao da cabine e ventilador
        tipo: boolean
        obrigatorio: true
        critico: false
      - secao: Cabine
        descricao: Sistema de alarme e interfone
        tipo: boolean
        obrigatorio: true
        critico: true
      - secao: Pavimento
        descricao: Funcionamento das botoeiras de pavimento
        tipo: boolean
        obrigatorio: true
        critico: false
      - secao: Pavimento
        descricao: Nivelamento entre andares dentro da tolerancia da norma
        tipo: leitura
        obrigatorio: true
        critico: true
      - secao: Maquina
        descricao: Ausencia de ruidos, vibracoes ou trancos anormais
        tipo: boolean
        obrigatorio: true
        critico: false
      - secao: Maquina
        descricao: Lubrificacao de guias
        tipo: photo
        obrigatorio: true
        critico: false
        fotos_min: 1
      - secao: Portas
        descricao: Funcionamento das portas de pavimento e cabina
        tipo: boolean
        obrigatorio: true
        critico: true
      - secao: Poco
        descricao: Limpeza do poco
        tipo: photo
        obrigatorio: false
        critico: false
        fotos_min: 1
      - secao: Encerramento
        descricao: Assinatura do responsavel pelo local
        tipo: signature
        obrigatorio: true
        critico: false

  - nome: Preventiva Bimestral - Elevador Hidraulico
    tipo_servico: preventiva
    origem: abnt
    itens:
      - secao: Hidraulica
        descricao: Nivel e qualidade do oleo hidraulico dentro da faixa
        tipo: leitura
        obrigatorio: true
        critico: true
      - secao: Hidraulica
        descricao: Ausencia de vazamentos em mangueiras, conexoes e cilindros
        tipo: boolean
        obrigatorio: true
        critico: true
      - secao: Hidraulica
        descricao: Bombas e valvulas sem ruido excessivo
        tipo: boolean
        obrigatorio: true
        critico: false
      - secao: Cabine
        descricao: Funcionamento das botoeiras e alarmes de cabine
        tipo: boolean
        obrigatorio: true
        critico: false
      - secao: Casa de maquinas
        descricao: Limpeza geral da casa de maquinas
        tipo: photo
        obrigatorio: true
        critico: false
        fotos_min: 2
      - secao: Seguranca
        descricao: Teste do dispositivo de descida de emergencia
        tipo: boolean
        obrigatorio: true
        critico: true
      - secao: Encerramento
        descricao: Assinatura do responsavel pelo local
        tipo: signature
        obrigatorio: true
        critico: false
`
