package site

import (
	"regexp"

	"github.com/law-makers/pricecrawl/internal/document"
	"github.com/law-makers/pricecrawl/internal/extract"
)

// JSONLDIsland collects every schema.org JSON-LD block under "ld"
var JSONLDIsland = document.Island{Name: "ld", Selector: `script[type="application/ld+json"]`}

// rupee is the catch-all price pattern for Indian storefronts
const rupee = `₹\s*([\d,]+(?:\.\d{1,2})?)`

// Builtin returns a registry with the bundled site configurations
func Builtin() *Registry {
	return NewRegistry(Amazon(), Flipkart(), Myntra(), JSONLD())
}

// Amazon is amazon.in
func Amazon() *Site {
	return &Site{
		Name:           "amazon",
		Hosts:          []string{"amazon.in"},
		ProductPattern: regexp.MustCompile(`/(dp|gp/product|gp/aw/d)/[A-Z0-9]{10}`),
		PageParam:      "page",
		WarmUpURL:      "https://www.amazon.in/",
		BlockSignatures: []string{
			"enter the characters you see below",
			"sorry, we just need to make sure you're not a robot",
			"api-services-support@amazon.com",
		},
		Product: extract.MustSchema([]extract.FieldSpec{
			{Name: extract.FieldTitle, Required: true, Post: extract.Text, Locators: []extract.Locator{
				extract.CSS("#productTitle"),
				extract.CSS("#title"),
				extract.Attr(`meta[name="title"]`, "content"),
			}},
			{Name: extract.FieldBrand, Post: brandPost, Locators: []extract.Locator{
				extract.CSS("#bylineInfo"),
				extract.CSS("#productOverview_feature_div tr.po-brand td:last-child"),
			}},
			{Name: extract.FieldSellingPrice, Post: extract.Price, Locators: []extract.Locator{
				extract.CSS("#corePriceDisplay_desktop_feature_div .priceToPay .a-offscreen"),
				extract.CSS("#corePrice_feature_div .a-price .a-offscreen"),
				extract.CSS("#priceblock_dealprice"),
				extract.CSS("#priceblock_ourprice"),
				extract.CSS(".a-price .a-offscreen"),
				extract.Regex(rupee),
			}},
			{Name: extract.FieldMRP, Post: extract.Price, Locators: []extract.Locator{
				extract.CSS("#corePriceDisplay_desktop_feature_div .basisPrice .a-offscreen"),
				extract.CSS(".a-price.a-text-price .a-offscreen"),
				extract.CSS("#priceblock_mrp"),
				extract.Regex(`M\.R\.P\.?:?\s*₹\s*([\d,]+(?:\.\d{1,2})?)`),
			}},
			{Name: extract.FieldDiscountPercent, Post: extract.Percent, Locators: []extract.Locator{
				extract.CSS(".savingsPercentage"),
			}},
			{Name: extract.FieldImages, Post: extract.Images, Locators: []extract.Locator{
				extract.Attr("#landingImage", "data-a-dynamic-image"),
				extract.Attr("#landingImage", "data-old-hires"),
				extract.CSSAll("#altImages img", "src"),
				extract.Attr("#imgBlkFront", "src"),
			}},
			{Name: extract.FieldDescription, Post: extract.Markdown, Locators: []extract.Locator{
				extract.HTML("#feature-bullets"),
				extract.HTML("#productDescription"),
			}},
			{Name: extract.FieldAttributes, Post: extract.Raw, Locators: []extract.Locator{
				extract.Pairs("#productDetails_techSpec_section_1 tr", "th", "td"),
				extract.Pairs("#productOverview_feature_div tr", "td:first-child", "td:last-child"),
				extract.Pairs("#detailBullets_feature_div li", "span.a-text-bold", "span.a-text-bold + span"),
			}},
			{Name: extract.FieldRating, Post: extract.Price, Locators: []extract.Locator{
				extract.CSS("#acrPopover span.a-icon-alt"),
			}},
		}, extract.DeriveBrand()),
		Listing: &extract.Listing{
			ItemSelector: `div[data-component-type="s-search-result"]`,
			Schema: extract.MustSchema([]extract.FieldSpec{
				{Name: extract.FieldTitle, Required: true, Post: extract.Text, Locators: []extract.Locator{
					extract.CSS("h2 span"),
					extract.Attr("h2", "aria-label"),
				}},
				{Name: extract.FieldURL, Post: extract.Link, Locators: []extract.Locator{
					extract.Attr("h2 a", "href"),
					extract.Attr("a.a-link-normal.s-no-outline", "href"),
				}},
				{Name: extract.FieldSellingPrice, Post: extract.Price, Locators: []extract.Locator{
					extract.CSS(".a-price:not(.a-text-price) .a-offscreen"),
				}},
				{Name: extract.FieldMRP, Post: extract.Price, Locators: []extract.Locator{
					extract.CSS(".a-price.a-text-price .a-offscreen"),
				}},
				{Name: extract.FieldImages, Post: extract.Images, Locators: []extract.Locator{
					extract.CSSAll("img.s-image", "src"),
				}},
				{Name: extract.FieldRating, Post: extract.Price, Locators: []extract.Locator{
					extract.CSS("span.a-icon-alt"),
				}},
			}, extract.DeriveBrand()),
		},
	}
}

// Flipkart is flipkart.com. JSON-LD is preferred when present; the class
// names are build hashes and change often.
func Flipkart() *Site {
	return &Site{
		Name:           "flipkart",
		Hosts:          []string{"flipkart.com"},
		ProductPattern: regexp.MustCompile(`/p/itm[0-9a-z]+`),
		PageParam:      "page",
		WarmUpURL:      "https://www.flipkart.com/",
		Islands:        []document.Island{JSONLDIsland},
		BlockSignatures: []string{
			"are you a human",
			"flipkart recaptcha",
		},
		Product: extract.MustSchema([]extract.FieldSpec{
			{Name: extract.FieldTitle, Required: true, Post: extract.Text, Locators: []extract.Locator{
				extract.JSON("ld.name"),
				extract.CSS("h1 span.VU-ZEz"),
				extract.CSS("span.B_NuCI"),
				extract.CSS("h1"),
			}},
			{Name: extract.FieldBrand, Post: extract.Text, Locators: []extract.Locator{
				extract.JSON("ld.brand.name"),
				extract.CSS("span.mEh187"),
			}},
			{Name: extract.FieldSellingPrice, Post: extract.Price, Locators: []extract.Locator{
				extract.JSON("ld.offers.price"),
				extract.CSS("div.Nx9bqj.CxhGGd"),
				extract.CSS("div._30jeq3._16Jk6d"),
				extract.Regex(rupee),
			}},
			{Name: extract.FieldMRP, Post: extract.Price, Locators: []extract.Locator{
				extract.CSS("div.yRaY8j.A6\\+E6v"),
				extract.CSS("div._3I9_wc._2p6lqe"),
			}},
			{Name: extract.FieldDiscountPercent, Post: extract.Percent, Locators: []extract.Locator{
				extract.CSS("div.UkUFwK span"),
				extract.CSS("div._3Ay6Sb span"),
			}},
			{Name: extract.FieldImages, Post: extract.Images, Locators: []extract.Locator{
				extract.JSON("ld.image"),
				extract.CSSAll("img._0DkuPH", "src"),
				extract.CSSAll("img._396cs4", "src"),
			}},
			{Name: extract.FieldDescription, Post: extract.Markdown, Locators: []extract.Locator{
				extract.HTML("div.yN\\+eNk"),
				extract.HTML("div._1mXcCf"),
			}},
			{Name: extract.FieldAttributes, Post: extract.Raw, Locators: []extract.Locator{
				extract.Pairs("div._3k-BhJ tr", "td:first-child", "td:last-child"),
				extract.Pairs("table._0ZhAN9 tr", "td:first-child", "td:last-child"),
			}},
			{Name: extract.FieldRating, Post: extract.Price, Locators: []extract.Locator{
				extract.JSON("ld.aggregateRating.ratingValue"),
				extract.CSS("div.XQDdHH"),
			}},
		}),
		Listing: &extract.Listing{
			ItemSelector: "div[data-id]",
			Schema: extract.MustSchema([]extract.FieldSpec{
				{Name: extract.FieldTitle, Required: true, Post: extract.Text, Locators: []extract.Locator{
					extract.CSS("div.KzDlHZ"),
					extract.Attr("a.wjcEIp", "title"),
					extract.CSS("a.WKTcLC"),
					extract.Attr("img", "alt"),
				}},
				{Name: extract.FieldBrand, Post: extract.Text, Locators: []extract.Locator{
					extract.CSS("div.syl9yP"),
				}},
				{Name: extract.FieldURL, Post: extract.Link, Locators: []extract.Locator{
					extract.Attr("a[href*='/p/']", "href"),
				}},
				{Name: extract.FieldSellingPrice, Post: extract.Price, Locators: []extract.Locator{
					extract.CSS("div.Nx9bqj"),
					extract.CSS("div._30jeq3"),
				}},
				{Name: extract.FieldMRP, Post: extract.Price, Locators: []extract.Locator{
					extract.CSS("div.yRaY8j"),
					extract.CSS("div._3I9_wc"),
				}},
				{Name: extract.FieldImages, Post: extract.Images, Locators: []extract.Locator{
					extract.CSSAll("img.DByuf4", "src"),
					extract.CSSAll("img._396cs4", "src"),
				}},
			}),
		},
	}
}

// Myntra is myntra.com. Pages are server-rendered with a window.__myx data
// island holding the whole product or search payload.
func Myntra() *Site {
	return &Site{
		Name:           "myntra",
		Hosts:          []string{"myntra.com"},
		ProductPattern: regexp.MustCompile(`/\d+/buy$`),
		PageParam:      "p",
		WarmUpURL:      "https://www.myntra.com/",
		Islands:        []document.Island{{Variable: "__myx"}},
		BlockSignatures: []string{
			"site maintenance",
			"oops! something went wrong",
		},
		Product: extract.MustSchema([]extract.FieldSpec{
			{Name: extract.FieldTitle, Required: true, Post: extract.Text, Locators: []extract.Locator{
				extract.JSON("pdpData.name"),
				extract.CSS("h1.pdp-name"),
			}},
			{Name: extract.FieldBrand, Post: extract.Text, Locators: []extract.Locator{
				extract.JSON("pdpData.brand.name"),
				extract.CSS("h1.pdp-title"),
			}},
			{Name: extract.FieldSellingPrice, Post: extract.Price, Locators: []extract.Locator{
				extract.JSON("pdpData.price.discounted"),
				extract.CSS("span.pdp-price strong"),
				extract.Regex(`Rs\.?\s*([\d,]+)`),
			}},
			{Name: extract.FieldMRP, Post: extract.Price, Locators: []extract.Locator{
				extract.JSON("pdpData.price.mrp"),
				extract.CSS("span.pdp-mrp s"),
			}},
			{Name: extract.FieldImages, Post: extract.Images, Locators: []extract.Locator{
				extract.JSON("pdpData.media.albums.0.images.*.imageURL"),
				extract.JSON("pdpData.media.albums.0.images.*.secureSrc"),
				extract.CSSAll("div.image-grid-image img", "src"),
			}},
			{Name: extract.FieldDescription, Post: extract.Markdown, Locators: []extract.Locator{
				extract.JSON("pdpData.productDetails.0.description"),
				extract.HTML("p.pdp-product-description-content"),
			}},
			{Name: extract.FieldAttributes, Post: extract.Raw, Locators: []extract.Locator{
				extract.JSON("pdpData.articleAttributes"),
				extract.Pairs("div.index-row", "div.index-rowKey", "div.index-rowValue"),
			}},
			{Name: extract.FieldRating, Post: extract.Price, Locators: []extract.Locator{
				extract.JSON("pdpData.ratings.averageRating"),
			}},
		}),
		Listing: &extract.Listing{
			ItemsPath:    "searchData.results.products",
			ItemSelector: "li.product-base",
			Schema: extract.MustSchema([]extract.FieldSpec{
				{Name: extract.FieldTitle, Required: true, Post: extract.Text, Locators: []extract.Locator{
					extract.JSON("productName"),
					extract.JSON("product"),
					extract.CSS("h4.product-product"),
				}},
				{Name: extract.FieldBrand, Post: extract.Text, Locators: []extract.Locator{
					extract.JSON("brand"),
					extract.CSS("h3.product-brand"),
				}},
				{Name: extract.FieldURL, Post: extract.Link, Locators: []extract.Locator{
					extract.JSON("landingPageUrl"),
					extract.Attr("a", "href"),
				}},
				{Name: extract.FieldSellingPrice, Post: extract.Price, Locators: []extract.Locator{
					extract.JSON("price"),
					extract.CSS("span.product-discountedPrice"),
				}},
				{Name: extract.FieldMRP, Post: extract.Price, Locators: []extract.Locator{
					extract.JSON("mrp"),
					extract.CSS("span.product-strike"),
				}},
				{Name: extract.FieldImages, Post: extract.Images, Locators: []extract.Locator{
					extract.JSON("searchImage"),
					extract.JSON("images.*.src"),
					extract.CSSAll("img.img-responsive", "src"),
				}},
				{Name: extract.FieldRating, Post: extract.Price, Locators: []extract.Locator{
					extract.JSON("rating"),
				}},
			}),
		},
	}
}

// JSONLD reads any page publishing a schema.org Product. It has no hosts and
// is only used when selected by name.
func JSONLD() *Site {
	return &Site{
		Name:    "jsonld",
		Islands: []document.Island{JSONLDIsland},
		Product: extract.MustSchema([]extract.FieldSpec{
			{Name: extract.FieldTitle, Required: true, Post: extract.Text, Locators: []extract.Locator{
				extract.JSON("ld.name"),
				extract.Attr(`meta[property="og:title"]`, "content"),
				extract.CSS("h1"),
				extract.CSS("title"),
			}},
			{Name: extract.FieldBrand, Post: extract.Text, Locators: []extract.Locator{
				extract.JSON("ld.brand.name"),
				extract.JSON("ld.brand"),
			}},
			{Name: extract.FieldSellingPrice, Post: extract.Price, Locators: []extract.Locator{
				extract.JSON("ld.offers.price"),
				extract.JSON("ld.offers.lowPrice"),
				extract.Attr(`meta[property="product:price:amount"]`, "content"),
				extract.Attr(`[itemprop="price"]`, "content"),
			}},
			{Name: extract.FieldMRP, Post: extract.Price, Locators: []extract.Locator{
				extract.JSON("ld.offers.highPrice"),
			}},
			{Name: extract.FieldImages, Post: extract.Images, Locators: []extract.Locator{
				extract.JSON("ld.image"),
				extract.Attr(`meta[property="og:image"]`, "content"),
			}},
			{Name: extract.FieldDescription, Post: extract.Text, Locators: []extract.Locator{
				extract.JSON("ld.description"),
				extract.Attr(`meta[name="description"]`, "content"),
			}},
			{Name: extract.FieldRating, Post: extract.Price, Locators: []extract.Locator{
				extract.JSON("ld.aggregateRating.ratingValue"),
			}},
		}, extract.DeriveBrand()),
		Listing: &extract.Listing{
			ItemsPath: "ld.itemListElement",
			Schema: extract.MustSchema([]extract.FieldSpec{
				{Name: extract.FieldTitle, Required: true, Post: extract.Text, Locators: []extract.Locator{
					extract.JSON("item.name"),
					extract.JSON("name"),
				}},
				{Name: extract.FieldURL, Post: extract.Link, Locators: []extract.Locator{
					extract.JSON("item.url"),
					extract.JSON("url"),
				}},
				{Name: extract.FieldSellingPrice, Post: extract.Price, Locators: []extract.Locator{
					extract.JSON("item.offers.price"),
					extract.JSON("offers.price"),
				}},
				{Name: extract.FieldImages, Post: extract.Images, Locators: []extract.Locator{
					extract.JSON("item.image"),
					extract.JSON("image"),
				}},
			}),
		},
	}
}

var brandPost = extract.Strip(
	[]string{"Visit the ", "Brand: "},
	[]string{" Store"},
)
