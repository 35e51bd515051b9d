package web

type Lock struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}

// ListReq 只支持按照名字前缀查询
type ListReq struct {
	NamePrefix string `json:"namePrefix"`
}

type ExistsReq struct {
	Name string `json:"name"`
}

// PurgeReq Confirm 必须是 true，防止误操作
type PurgeReq struct {
	Confirm bool `json:"confirm"`
}
