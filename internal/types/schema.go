package types

// DomainRule is the semantic rule a present field value must satisfy.
type DomainRule string

const (
	// RuleStrictlyPositive rejects zero and negative values (prices, rates).
	RuleStrictlyPositive DomainRule = "strictly_positive"
	// RuleNonNegative rejects negative values (volumes).
	RuleNonNegative DomainRule = "non_negative"
)

// FieldSpec declares one field of a schema together with its domain rule.
type FieldSpec struct {
	Name Field
	Rule DomainRule
}

// Schema is the closed field set of a source variant. Validation rules are
// declared here once per variant rather than inferred at runtime.
type Schema struct {
	// Source tags records and run metadata (e.g. "CBR", "MOEX").
	Source string
	// Prefix is the fixed artifact name prefix for this variant.
	Prefix string
	Fields []FieldSpec
}

// CBRRates is the schema for daily RUB/USD exchange rates from the Bank of
// Russia.
var CBRRates = Schema{
	Source: "CBR",
	Prefix: "rub_usd",
	Fields: []FieldSpec{
		{Name: FieldRate, Rule: RuleStrictlyPositive},
	},
}

// MoexCandles is the schema for daily LQDT/TQTF OHLCV candles from the
// Moscow Exchange.
var MoexCandles = Schema{
	Source: "MOEX",
	Prefix: "lqdt_tqtf",
	Fields: []FieldSpec{
		{Name: FieldOpen, Rule: RuleNonNegative},
		{Name: FieldHigh, Rule: RuleNonNegative},
		{Name: FieldLow, Rule: RuleNonNegative},
		{Name: FieldClose, Rule: RuleNonNegative},
		{Name: FieldVolume, Rule: RuleNonNegative},
	},
}

// FieldNames returns the schema's field names in declaration order.
func (s Schema) FieldNames() []Field {
	names := make([]Field, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}

	return names
}
