package models

import "time"

// Article is a sellable catalog item. ArticleID is the external numeric id
// that also names the article's image in storage.
type Article struct {
	ArticleID        int64     `gorm:"column:article_id;primaryKey;autoIncrement:false"`
	ProdName         string    `gorm:"column:prod_name;not null"`
	ProductTypeNo    int64     `gorm:"column:product_type_no;not null;index"`
	ProductTypeName  string    `gorm:"column:product_type_name;not null;index"`
	ProductGroupName string    `gorm:"column:product_group_name;not null"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Article) TableName() string {
	return "articles"
}
