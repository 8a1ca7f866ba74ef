package models

import (
	"errors"

	"gorm.io/gorm"
)

// Post is an anonymous community-feed entry. Posts carry no author on
// purpose - the community screen is a safe space for sharing experiences.
type Post struct {
	BaseModel
	Message   string `json:"message" validate:"required"`
	Reactions int64  `json:"reactions" gorm:"default:0"`
}

func CreatePost(post *Post) error {
	return db.Create(post).Error
}

func FetchPosts(page int) ([]Post, *Paging, error) {
	var total int64
	posts := []Post{}

	err := db.Model(&Post{}).Count(&total).Error
	if err != nil {
		return nil, nil, err
	}

	err = db.Scopes(paginate(page, DEFAULT_PAGE_SIZE)).
		Order("posts.id desc").Find(&posts).Error
	if err != nil {
		return nil, nil, err
	}

	return posts, newPaging(int64(page), DEFAULT_PAGE_SIZE, total), nil
}

func AddPostReaction(postID interface{}) error {
	result := db.Model(&Post{}).Where("id = ?", postID).
		UpdateColumn("reactions", gorm.Expr("reactions + 1"))
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// SeedCommunityPosts inserts the starter posts shown to a fresh install.
func SeedCommunityPosts() error {
	err := db.First(&Post{}).Error
	if err == nil {
		return nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	return db.Create(&[]Post{
		{Message: "I experienced cyberstalking and reported it to cyber cell. " +
			"They were very helpful and took immediate action. Don't hesitate to report!", Reactions: 5},
		{Message: "Someone tried to hack my social media. Enable two-factor authentication, " +
			"it really helps! Stay safe everyone.", Reactions: 8},
		{Message: "Remember to regularly check your privacy settings on all social media platforms. " +
			"I found out my photos were public without realizing it.", Reactions: 12},
	}).Error
}
