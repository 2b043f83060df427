package ingest

import (
	"strings"

	"github.com/antonminaichev/zion-orders/internal/types/pedido"
)

type PlatformField int

const (
	FieldPlatform PlatformField = iota
	FieldVariant
)

type PlatformRule struct {
	Field      PlatformField
	Prefix     string
	Plataforma pedido.Plataforma
}

// PlatformTable resolves storefront platform/variant strings. Rules are
// tried in order with a case-insensitive prefix match; Default applies when
// none matches.
type PlatformTable struct {
	Rules   []PlatformRule
	Default pedido.Plataforma
}

func DefaultPlatformTable(def pedido.Plataforma) PlatformTable {
	if !def.Valid() {
		def = pedido.PlataformaPS5
	}
	return PlatformTable{
		Default: def,
		Rules: []PlatformRule{
			{FieldPlatform, "ps4s", pedido.PlataformaPS4s},
			{FieldPlatform, "ps4 sec", pedido.PlataformaPS4s},
			{FieldPlatform, "ps4", pedido.PlataformaPS4},
			// Only the PS4 family is decided by the platform field alone;
			// a PS5 listing defers to its variant name.
			{FieldVariant, "ps4 sec", pedido.PlataformaPS4s},
			{FieldVariant, "ps4", pedido.PlataformaPS4},
			{FieldVariant, "ps5 sec", pedido.PlataformaPS5s},
			{FieldVariant, "secund", pedido.PlataformaPS5s},
			{FieldVariant, "ps5", pedido.PlataformaPS5},
			{FieldPlatform, "ps5s", pedido.PlataformaPS5s},
			{FieldPlatform, "ps5 sec", pedido.PlataformaPS5s},
			{FieldPlatform, "ps5", pedido.PlataformaPS5},
		},
	}
}

func (t PlatformTable) Resolve(platform, variant string) pedido.Plataforma {
	values := map[PlatformField]string{
		FieldPlatform: strings.ToLower(strings.TrimSpace(platform)),
		FieldVariant:  strings.ToLower(strings.TrimSpace(variant)),
	}
	for _, r := range t.Rules {
		v := values[r.Field]
		if v != "" && strings.HasPrefix(v, r.Prefix) {
			return r.Plataforma
		}
	}
	return t.Default
}
