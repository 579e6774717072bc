// Package platform describes the marketplaces crosslist sells on.
//
// The set of platforms is closed: Mercari and YahooAuction are the only
// values, built once at start-up and never mutated. Each one carries the
// metadata needed to detect a sale from mail and to cancel a listing through
// the shared state machine in cancel.go.
package platform

import (
	"fmt"
	"regexp"
)

// ID is the stable identity of a platform. The tracking sheet column of a
// platform is ID+1.
type ID int

// Locator identifies the control that withdraws a listing.
type Locator struct {
	XPath string
	// Tag is the element name the control must have ("button", "input").
	Tag string
}

// Platform is one marketplace integration.
type Platform struct {
	id            ID
	code          string
	name          string
	soldMailQuery string
	itemIDPattern *regexp.Regexp
	listingURL    string // fmt template, %s = item ID
	cancelURL     string // fmt template, %s = item ID
	cancelControl Locator
}

// Mercari is the Mercari Japan marketplace.
var Mercari = &Platform{
	id:            1,
	code:          "mercari",
	name:          "メルカリ",
	soldMailQuery: `from:(no-reply@mercari.jp) AND "購入しました"`,
	itemIDPattern: regexp.MustCompile(`商品ID : ([a-zA-Z0-9]+)`),
	listingURL:    "https://jp.mercari.com/item/%s",
	cancelURL:     "https://jp.mercari.com/sell/edit/%s",
	cancelControl: Locator{
		XPath: `//*[@id="main"]/form/div[2]/mer-button[2]/button`,
		Tag:   "button",
	},
}

// YahooAuction is Yahoo! JAPAN Auctions.
var YahooAuction = &Platform{
	id:            2,
	code:          "yahoo_auction",
	name:          "ヤフオク!",
	soldMailQuery: `from:(auction-master@mail.yahoo.co.jp) AND {subject:("ヤフオク! - 終了（落札者あり）")}`,
	itemIDPattern: regexp.MustCompile(`オークションID：([a-zA-Z0-9]+)`),
	listingURL:    "https://page.auctions.yahoo.co.jp/jp/auction/%s",
	cancelURL:     "https://page.auctions.yahoo.co.jp/jp/show/cancelauction?aID=%s",
	cancelControl: Locator{
		XPath: "/html/body/center[1]/form/table/tbody/tr[3]/td/input",
		Tag:   "input",
	},
}

var all = []*Platform{Mercari, YahooAuction}

// All returns every platform in stable processing order.
func All() []*Platform {
	out := make([]*Platform, len(all))
	copy(out, all)
	return out
}

// ByCode looks a platform up by its machine-readable code.
func ByCode(code string) (*Platform, bool) {
	for _, p := range all {
		if p.code == code {
			return p, true
		}
	}
	return nil, false
}

// Codes returns the codes of all platforms.
func Codes() []string {
	codes := make([]string, len(all))
	for i, p := range all {
		codes[i] = p.code
	}
	return codes
}

// Others returns every platform except p, in processing order.
func Others(p *Platform) []*Platform {
	var out []*Platform
	for _, q := range all {
		if q.id != p.id {
			out = append(out, q)
		}
	}
	return out
}

func (p *Platform) ID() ID { return p.id }
func (p *Platform) Code() string { return p.code }
func (p *Platform) Name() string { return p.name }
func (p *Platform) String() string { return p.name }
func (p *Platform) Column() int { return int(p.id) + 1 }
func (p *Platform) Control() Locator { return p.cancelControl }

// SoldMailQuery is the Gmail search query matching this platform's
// "item sold" notifications.
func (p *Platform) SoldMailQuery() string { return p.soldMailQuery }

// ListingURL returns the public page of a listing.
func (p *Platform) ListingURL(itemID string) string {
	return fmt.Sprintf(p.listingURL, itemID)
}

// CancelURL returns the page holding the listing's cancel control.
func (p *Platform) CancelURL(itemID string) string {
	return fmt.Sprintf(p.cancelURL, itemID)
}

// ExtractItemID returns the first item ID found in a notification body.
func (p *Platform) ExtractItemID(body string) (string, bool) {
	m := p.itemIDPattern.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return m[1], true
}
