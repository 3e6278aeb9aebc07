package withings

// Every response comes wrapped in {status, body}; status 0 is
// success, anything else is an API-level error even on HTTP 200.

type measure struct {
	Value int64 `json:"value"`
	Type  int   `json:"type"`
	Unit  int   `json:"unit"`
}

type measureGroup struct {
	Date     int64     `json:"date"`
	Category int       `json:"category"`
	Measures []measure `json:"measures"`
}

type measureResponse struct {
	Status int `json:"status"`
	Body   struct {
		MeasureGroups []measureGroup `json:"measuregrps"`
	} `json:"body"`
}

type activity struct {
	Date  string `json:"date"`
	Steps int    `json:"steps"`
}

type activityResponse struct {
	Status int `json:"status"`
	Body   struct {
		Activities []activity `json:"activities"`
	} `json:"body"`
}

type tokenResponse struct {
	Status int `json:"status"`
	Body   struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
		Scope        string `json:"scope"`
	} `json:"body"`
}
