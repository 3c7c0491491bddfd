package domain

// WebPixel is a tracking artifact created on a Shopify store
type WebPixel struct {
	ID       string `json:"id"`
	Settings string `json:"settings"`
}
