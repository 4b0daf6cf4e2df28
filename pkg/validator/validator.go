package validator

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	valid "github.com/go-playground/validator/v10"
	enTrans "github.com/go-playground/validator/v10/translations/en"
	zhTrans "github.com/go-playground/validator/v10/translations/zh"

	"tickflow/pkg/logger"
)

var (
	once  sync.Once
	Trans ut.Translator
)

// LazyInitGinValidator 初始化gin的validator翻译器，language: zh / en
func LazyInitGinValidator(language string) {
	once.Do(func() {
		v, ok := binding.Validator.Engine().(*valid.Validate)
		if !ok {
			logger.Warn("gin validator engine not found, skip translator init")
			return
		}
		enLoc := en.New()
		zhLoc := zh.New()
		uni := ut.New(enLoc, enLoc, zhLoc)

		var err error
		switch language {
		case "zh":
			Trans, _ = uni.GetTranslator("zh")
			err = zhTrans.RegisterDefaultTranslations(v, Trans)
		default:
			Trans, _ = uni.GetTranslator("en")
			err = enTrans.RegisterDefaultTranslations(v, Trans)
		}
		if err != nil {
			logger.Errorf("register validator translations: %v", err)
		}
	})
}

// Translate 将校验错误翻译为可读文案
func Translate(err error) string {
	if err == nil {
		return ""
	}
	errs, ok := err.(valid.ValidationErrors)
	if !ok || Trans == nil {
		return err.Error()
	}
	for _, e := range errs {
		return e.Translate(Trans)
	}
	return err.Error()
}
