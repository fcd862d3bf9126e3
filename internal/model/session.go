package model

type State int

const (
	DefaultState State = iota
	ExpectingBuyParams
	ExpectingSellParams
	ExpectingAlertParams
	ExpectingApiKey
	ExpectingApiSecret
)

type Session struct {
	State  State
	ApiKey string // промежуточное хранение между шагами /connect
}
