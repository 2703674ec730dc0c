package enums

// TaxCategory classifies variants for the external tax-rate provider.
type TaxCategory string

const (
	TaxCategoryStandard TaxCategory = "standard"
	TaxCategoryReduced  TaxCategory = "reduced"
	TaxCategoryExempt   TaxCategory = "exempt"
)

// String implements fmt.Stringer.
func (t TaxCategory) String() string {
	return string(t)
}
