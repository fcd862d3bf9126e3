package coingeckoModel

// RawPrices is the /simple/price response shape: coin id -> currency -> price.
type RawPrices map[string]map[string]float64
