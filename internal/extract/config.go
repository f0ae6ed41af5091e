package extract

import "github.com/JakeFAU/ec-listings-pipeline/internal/listing"

// DefaultConfig returns the built-in selector set. It covers microdata
// annotations, common class names, and the th/dt label layout used by
// most Japanese company profile pages. Site-specific overrides come from
// the config file.
func DefaultConfig() Config {
	return Config{
		listing.FieldName: {
			{Selector: `[itemprop="name"]`},
			{Selector: ".company-name"},
			{Label: "会社名"},
			{Label: "事業者名"},
			{Label: "販売業者"},
			{Selector: "h1"},
		},
		listing.FieldAddress: {
			{Selector: `[itemprop="address"]`},
			{Selector: ".company-address"},
			{Label: "所在地"},
			{Label: "住所"},
		},
		listing.FieldPostalCode: {
			{Selector: `[itemprop="postalCode"]`},
			{Label: "郵便番号"},
		},
		listing.FieldPhone: {
			{Selector: `[itemprop="telephone"]`},
			{Label: "電話番号"},
			{Label: "TEL"},
		},
		listing.FieldEmail: {
			{Selector: `a[href^="mailto:"]`, Attr: "href"},
			{Label: "メールアドレス"},
		},
		listing.FieldWebsite: {
			{Selector: `[itemprop="url"]`, Attr: "href"},
			{Selector: ".company-website a", Attr: "href"},
			{Label: "ホームページ"},
			{Label: "URL"},
		},
		listing.FieldCategory: {
			{Selector: ".company-category"},
			{Label: "取扱商品"},
			{Label: "事業内容"},
		},
		listing.FieldCorporateNumber: {
			{Label: "法人番号"},
		},
		listing.FieldRepresentative: {
			{Label: "代表者"},
			{Label: "代表取締役"},
		},
		listing.FieldEstablishedDate: {
			{Label: "設立"},
			{Label: "設立年月日"},
			{Label: "創業"},
		},
		listing.FieldEmployeeCount: {
			{Label: "従業員数"},
			{Label: "社員数"},
		},
		listing.FieldAnnualSales: {
			{Label: "売上高"},
			{Label: "年商"},
		},
		listing.FieldNotes: {
			{Label: "備考"},
		},
	}
}
