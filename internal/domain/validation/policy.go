package validation

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/documents"
)

// StockCheck describes a product whose stock would end up negative.
type StockCheck struct {
	Product        *product.Product
	DocumentType   documents.Type
	CurrentStock   int64
	ResultingStock int64
}

// StockPolicy decides whether a product may go below zero.
type StockPolicy interface {
	AllowNegative(ctx context.Context, check StockCheck) (bool, error)
}

// DenyBackorders rejects every negative resulting stock.
type DenyBackorders struct{}

// AllowNegative implements StockPolicy.
func (DenyBackorders) AllowNegative(context.Context, StockCheck) (bool, error) { return false, nil }

// AllowBackorders accepts negative stock.
type AllowBackorders struct{}

// AllowNegative implements StockPolicy.
func (AllowBackorders) AllowNegative(context.Context, StockCheck) (bool, error) { return true, nil }

// CELPolicy evaluates a boolean CEL expression over
// sku, category, document_type, current_stock and resulting_stock.
//
// Example: category == "made-to-order" && resulting_stock >= -100
type CELPolicy struct {
	expr    string
	program cel.Program
}

// NewCELPolicy compiles expr.
func NewCELPolicy(expr string) (*CELPolicy, error) {
	env, err := cel.NewEnv(
		cel.Variable("sku", cel.StringType),
		cel.Variable("category", cel.StringType),
		cel.Variable("document_type", cel.StringType),
		cel.Variable("current_stock", cel.IntType),
		cel.Variable("resulting_stock", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile backorder policy: %w", iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("backorder policy must evaluate to bool, got %s", ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build backorder policy: %w", err)
	}
	return &CELPolicy{expr: expr, program: prg}, nil
}

// AllowNegative implements StockPolicy.
func (p *CELPolicy) AllowNegative(_ context.Context, check StockCheck) (bool, error) {
	out, _, err := p.program.Eval(map[string]any{
		"sku":             check.Product.SKU,
		"category":        check.Product.Category,
		"document_type":   string(check.DocumentType),
		"current_stock":   check.CurrentStock,
		"resulting_stock": check.ResultingStock,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate backorder policy: %w", err)
	}
	allowed, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("backorder policy returned %T", out.Value())
	}
	return allowed, nil
}

// String returns the source expression.
func (p *CELPolicy) String() string {
	return p.expr
}

// ParsePolicy maps a configuration value to a policy: "deny" (or empty),
// "allow", or any other value compiled as a CEL expression.
func ParsePolicy(value string) (StockPolicy, error) {
	switch value {
	case "", "deny":
		return DenyBackorders{}, nil
	case "allow":
		return AllowBackorders{}, nil
	default:
		return NewCELPolicy(value)
	}
}
