package stub

type accountResponse struct {
	Username string `json:"username"`
}

type signInResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// errorResponse matches the error body kong sends.
type errorResponse struct {
	Msg string `json:"msg"`
}
