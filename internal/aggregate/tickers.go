package aggregate

// PopularTickers is the default universe scanned by the top-movers, buzz and
// sentiment endpoints when no explicit list is configured.
var PopularTickers = []string{
	"AAPL", "MSFT", "GOOGL", "AMZN", "META", "TSLA", "NVDA", "AMD",
	"NFLX", "DIS", "JPM", "V", "JNJ", "WMT", "PG", "MA", "UNH", "HD",
	"PYPL", "BAC", "INTC", "CMCSA", "XOM", "VZ", "ADBE", "CSCO", "NKE",
	"MRVL", "AVGO", "QCOM",
}

var companyNames = map[string]string{
	"AAPL":  "Apple Inc.",
	"MSFT":  "Microsoft Corporation",
	"GOOGL": "Alphabet Inc.",
	"AMZN":  "Amazon.com Inc.",
	"META":  "Meta Platforms Inc.",
	"TSLA":  "Tesla Inc.",
	"NVDA":  "NVIDIA Corporation",
	"AMD":   "Advanced Micro Devices Inc.",
	"NFLX":  "Netflix Inc.",
	"DIS":   "The Walt Disney Company",
	"JPM":   "JPMorgan Chase & Co.",
	"V":     "Visa Inc.",
	"JNJ":   "Johnson & Johnson",
	"WMT":   "Walmart Inc.",
	"PG":    "The Procter & Gamble Company",
	"MA":    "Mastercard Incorporated",
	"UNH":   "UnitedHealth Group Inc.",
	"HD":    "The Home Depot Inc.",
	"PYPL":  "PayPal Holdings Inc.",
	"BAC":   "Bank of America Corp.",
	"INTC":  "Intel Corporation",
	"CMCSA": "Comcast Corporation",
	"XOM":   "Exxon Mobil Corporation",
	"VZ":    "Verizon Communications Inc.",
	"ADBE":  "Adobe Inc.",
	"CSCO":  "Cisco Systems Inc.",
	"NKE":   "Nike Inc.",
	"MRVL":  "Marvell Technology Inc.",
	"AVGO":  "Broadcom Inc.",
	"QCOM":  "QUALCOMM Incorporated",
}

// CompanyName returns the known company name for ticker, or the
// "<TICKER> Corporation" placeholder.
func CompanyName(ticker string) string {
	if name, ok := companyNames[ticker]; ok {
		return name
	}
	return ticker + " Corporation"
}
