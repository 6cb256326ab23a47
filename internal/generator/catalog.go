package generator

import "strings"

type bank struct {
	Code string
	Name string
}

type transferFailure struct {
	Code    string
	Type    string
	Message string
}

// catalog holds the fixed vocabularies the synthesizers draw from.
type catalog struct {
	iosModels         []string
	iosVersions       []string
	androidModels     []string
	androidVersions   []string
	webModel          string
	webVersion        string
	screens           []string
	signupReferrers   []any
	completeReferrers []any
	channels          []string
	verifications     []string
	loginMethods      []string
	transferAmounts   []int
	recipientTypes    []string
	transferTypes     []string
	transferBanks     []string
	failures          []transferFailure
	qrAmounts         []int
	merchantBrands    []string
	merchantBranches  []string
	merchantCategory  []string
	paymentMethods    []string
	discounts         []int
	chargeAmounts     []int
	chargeMethods     []string
	chargeBanks       []string
	pushTypes         []string
	banks             []bank
}

func defaultCatalog() catalog {
	return catalog{
		iosModels:         []string{"iPhone 15 Pro", "iPhone 15", "iPhone 14 Pro", "iPhone 14", "iPhone 13"},
		iosVersions:       []string{"17.2", "17.1", "17.0", "16.6"},
		androidModels:     []string{"Galaxy S24 Ultra", "Galaxy S24", "Galaxy S23", "Pixel 8 Pro", "Pixel 8"},
		androidVersions:   []string{"14", "13", "12"},
		webModel:          "Web Browser",
		webVersion:        "Chrome 120",
		screens:           []string{"home", "transfer_home", "transfer_confirm", "transfer_complete", "charge_home", "qr_scan", "product_list", "product_detail", "my_page", "settings", "notification", "benefit_home"},
		signupReferrers:   []any{"organic", "friend_invite", "instagram", "youtube", "search", nil},
		completeReferrers: []any{"organic", "friend_invite", "instagram", nil},
		channels:          []string{"instagram", "youtube", "search", "organic"},
		verifications:     []string{"phone_sms", "phone_sms", "bank_account", "pass_cert"},
		loginMethods:      []string{"biometric", "biometric", "pin", "password"},
		transferAmounts:   []int{10000, 30000, 50000, 100000, 200000, 500000},
		recipientTypes:    []string{"contact", "contact", "account", "qr"},
		transferTypes:     []string{"instant", "instant", "scheduled"},
		transferBanks:     []string{"088", "004", "003", "011", "020"},
		failures: []transferFailure{
			{Code: "TRF_TIMEOUT_001", Type: "network", Message: "transfer processing timed out"},
			{Code: "TRF_LIMIT_002", Type: "business", Message: "daily transfer limit exceeded"},
			{Code: "TRF_BANK_003", Type: "external", Message: "receiving bank under maintenance"},
		},
		qrAmounts:        []int{3500, 4500, 5000, 6500, 12000, 15000, 25000},
		merchantBrands:   []string{"Blue Bottle", "Mega Coffee", "Olive Young", "GS25", "CU", "Kyochon", "Paris Baguette", "Emart24", "Musinsa", "Tmoney"},
		merchantBranches: []string{"Gangnam", "Yeoksam", "Pangyo", "Seongsu"},
		merchantCategory: []string{"cafe", "restaurant", "convenience_store", "grocery", "clothing", "transport"},
		paymentMethods:   []string{"balance", "balance", "card", "point"},
		discounts:        []int{0, 0, 500, 1000},
		chargeAmounts:    []int{10000, 30000, 50000, 100000, 200000},
		chargeMethods:    []string{"bank_transfer", "bank_transfer", "card"},
		chargeBanks:      []string{"088", "004", "003"},
		pushTypes:        []string{"marketing", "transactional", "reminder"},
		banks: []bank{
			{Code: "088", Name: "Shinhan Bank"},
			{Code: "004", Name: "KB Kookmin Bank"},
			{Code: "003", Name: "IBK Industrial Bank"},
			{Code: "011", Name: "NH Nonghyup Bank"},
			{Code: "020", Name: "Woori Bank"},
			{Code: "090", Name: "KakaoBank"},
			{Code: "092", Name: "Toss Bank"},
		},
	}
}

// screenClass turns "transfer_home" into "TransferHomeViewController".
func screenClass(screen string) string {
	var b strings.Builder
	for _, part := range strings.Split(screen, "_") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	b.WriteString("ViewController")
	return b.String()
}
