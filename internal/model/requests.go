package model

type AdminCredentials struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}
