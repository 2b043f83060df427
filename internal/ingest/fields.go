package ingest

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Field lists the accepted spellings of one logical field, in priority order.
type Field struct {
	Name    string
	Aliases []string
	Default string
}

type FieldMap []Field

// DeliveryFields is the table used by the item delivery endpoint.
var DeliveryFields = FieldMap{
	{Name: "item_id", Aliases: []string{"itemId", "id"}},
	{Name: "destinatario", Aliases: []string{"to", "email", "cliente_email"}},
	{Name: "cliente_nome", Aliases: []string{"clienteNome", "nome", "cliente"}},
	{Name: "pedido_codigo", Aliases: []string{"pedidoCodigo", "codigo_pedido", "codigoPedido"}},
	{Name: "jogo", Aliases: []string{"game", "nome_jogo"}},
	{Name: "template_tipo", Aliases: []string{"templateTipo", "template"}, Default: "PS4_Primaria"},
	{Name: "login", Aliases: []string{"email_conta", "usuario"}},
	{Name: "senha", Aliases: []string{"senha_conta", "password"}},
	{Name: "codigo", Aliases: []string{"codigo_ativacao", "code"}},
}

// Resolve picks, for every field, the first non-empty value among its name
// and aliases.
func (m FieldMap) Resolve(raw map[string]interface{}) map[string]string {
	out := make(map[string]string, len(m))
	for _, f := range m {
		out[f.Name] = f.Default
		for _, key := range append([]string{f.Name}, f.Aliases...) {
			if v := stringify(raw[key]); v != "" {
				out[f.Name] = v
				break
			}
		}
	}
	return out
}

// FromValues adapts form values to Resolve input using the first value.
func FromValues(vals url.Values) map[string]interface{} {
	raw := make(map[string]interface{}, len(vals))
	for k, v := range vals {
		if len(v) > 0 {
			raw[k] = v[0]
		}
	}
	return raw
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
