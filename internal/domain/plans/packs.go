package plans

import "strings"

type CreditPack struct {
	ID         string `json:"id"`
	Credits    int64  `json:"credits"`
	PriceCents int64  `json:"priceCents"`
}

var packs = []CreditPack{
	{ID: "starter", Credits: 50, PriceCents: 299},
	{ID: "creator", Credits: 200, PriceCents: 999},
	{ID: "studio", Credits: 500, PriceCents: 1999},
	{ID: "enterprise", Credits: 2000, PriceCents: 5999},
}

func Packs() []CreditPack {
	out := make([]CreditPack, len(packs))
	copy(out, packs)
	return out
}

func LookupPack(id string) (CreditPack, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, p := range packs {
		if p.ID == id {
			return p, true
		}
	}
	return CreditPack{}, false
}
