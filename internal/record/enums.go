package record

import "github.com/craftwise/craftwise/backend/pkg/models"

func init() {
	RegisterEnum(models.SelectionType(""),
		string(models.SelectionSingle),
		string(models.SelectionMulti),
		string(models.SelectionNone),
	)
	RegisterEnum(models.XAxisType(""),
		string(models.XAxisDatetime),
		string(models.XAxisString),
		string(models.XAxisInteger),
		string(models.XAxisFloat),
	)
}
