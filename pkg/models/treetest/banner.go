package treetest

import (
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/expression"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/models"
)

// Banner is a small published tree: a required material choice priced per square foot on top of a
// 400 cent/sqft base with a 444 cent minimum. Vinyl consumes VINYL-13OZ by total square feet.
//
// For a 24x48 in line of 2 pieces, vinyl totals 7200 cents and mesh 7600.
func Banner() *models.Tree {
	tree := Tree(models.TreeStatusActive, []string{"material"},
		[]models.Node{
			EnumInput("material", "material", true, "vinyl", "mesh"),
			Price("vinyl-price", []models.PriceComponent{Component("vinyl", models.ComponentPerSqft, expression.NewLiteral(50))},
				Material("VINYL-13OZ", "sqft", expression.NewLineRef(expression.LineSqft))),
			Price("mesh-price", []models.PriceComponent{Component("mesh", models.ComponentPerSqft, expression.NewLiteral(75))}),
		},
		[]models.Edge{
			Edge("e-vinyl", "material", "vinyl-price", 0, Equals("material", "vinyl")),
			Edge("e-mesh", "material", "mesh-price", 0, Equals("material", "mesh")),
		})
	return WithBase(tree, 400, 0, 444)
}
