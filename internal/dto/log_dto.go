package dto

type LogListRequest struct {
	Level  string `query:"level"`
	Limit  int    `query:"limit" validate:"min=0,max=500"`
	Offset int    `query:"offset" validate:"min=0"`
}
