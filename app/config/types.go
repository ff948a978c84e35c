package config

// Profile describes how one listing site is scraped: where the listing
// lives, which selectors locate flyers and items, and which labels are
// promotional noise rather than priced products.
type Profile struct {
	Name      string          `yaml:"-"` // Derived from filename
	Site      SiteInfo        `yaml:"site"`
	Selectors SelectorSet     `yaml:"selectors"`
	Settings  ProfileSettings `yaml:"settings"`
	Denylist  []string        `yaml:"denylist"`
	Blacklist []int64         `yaml:"blacklisted_flyers"`
}

// SiteInfo contains the listing URL and templates for per-flyer and
// per-item detail pages. Templates receive the flyer or item id.
type SiteInfo struct {
	ListingURL   string `yaml:"listing_url"`
	FlyerURLTmpl string `yaml:"flyer_url"`
	ItemURLTmpl  string `yaml:"item_url"`
}

type SelectorSet struct {
	FlyerListing   string `yaml:"flyer_listing"`
	FlyerID        string `yaml:"flyer_id_attr"`
	FlyerValidTo   string `yaml:"flyer_valid_until_attr"`
	FlyerStore     string `yaml:"flyer_store_attr"`
	StoreChain     string `yaml:"store_chain"`
	ItemContainer  string `yaml:"item_container"`
	ItemName       string `yaml:"item_name_attr"`
	ItemID         string `yaml:"item_id_attr"`
	ItemImage      string `yaml:"item_image"`
	ItemPrice      string `yaml:"item_price"`
	ItemPriceValue string `yaml:"item_price_attr"`
	ItemUnit       string `yaml:"item_unit"`
}

type ProfileSettings struct {
	Enabled        bool `yaml:"enabled"`
	PageTimeout    int  `yaml:"page_timeout"`  // seconds, flyer page load
	PriceTimeout   int  `yaml:"price_timeout"` // seconds, item price element
	MaxFlyers      int  `yaml:"max_flyers"`    // 0 = unlimited
	MaxItemsPerRun int  `yaml:"max_items"`     // 0 = unlimited
}
