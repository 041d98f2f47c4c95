package catalog

import "time"

// SchemaEntity is a row of catalog_schemas.
type SchemaEntity struct {
	SchemaName string    `gorm:"column:schema_name;primaryKey"`
	CreateTime time.Time `gorm:"column:create_time"`
}

func (SchemaEntity) TableName() string {
	return "catalog_schemas"
}

// TableEntity is a row of catalog_tables.
type TableEntity struct {
	SchemaName string    `gorm:"column:schema_name;primaryKey"`
	Name       string    `gorm:"column:table_name;primaryKey"`
	Location   string    `gorm:"column:location"`
	Format     string    `gorm:"column:format"`
	CreateTime time.Time `gorm:"column:create_time"`
	UpdateTime time.Time `gorm:"column:update_time"`
}

func (TableEntity) TableName() string {
	return "catalog_tables"
}

// ColumnEntity is a row of catalog_columns.
type ColumnEntity struct {
	SchemaName string `gorm:"column:schema_name;primaryKey"`
	Table      string `gorm:"column:table_name;primaryKey"`
	ColumnName string `gorm:"column:column_name;primaryKey"`
	Position   int    `gorm:"column:position"`
	DataType   string `gorm:"column:data_type"`
	Nullable   bool   `gorm:"column:nullable"`
}

func (ColumnEntity) TableName() string {
	return "catalog_columns"
}
